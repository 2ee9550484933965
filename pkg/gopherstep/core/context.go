package core

type ctxKey string

const (
	CtxKeyExecutorId  ctxKey = ctxKey("executorId")
	CtxKeyExecutionId ctxKey = ctxKey("executionId")
	CtxKeyWorkerId    ctxKey = ctxKey("workerId")
)
