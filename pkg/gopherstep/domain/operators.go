package domain

// Choice comparison operators.
const (
	OpStringEquals             = "StringEquals"
	OpStringNotEquals          = "StringNotEquals"
	OpStringLessThan           = "StringLessThan"
	OpStringGreaterThan        = "StringGreaterThan"
	OpStringLessThanEquals     = "StringLessThanEquals"
	OpStringGreaterThanEquals  = "StringGreaterThanEquals"
	OpStringMatches            = "StringMatches"
	OpNumericEquals            = "NumericEquals"
	OpNumericNotEquals         = "NumericNotEquals"
	OpNumericLessThan          = "NumericLessThan"
	OpNumericGreaterThan       = "NumericGreaterThan"
	OpNumericLessThanEquals    = "NumericLessThanEquals"
	OpNumericGreaterThanEquals = "NumericGreaterThanEquals"
	OpBooleanEquals            = "BooleanEquals"
	OpIsPresent                = "IsPresent"
	OpIsNull                   = "IsNull"
	OpIsString                 = "IsString"
	OpIsNumeric                = "IsNumeric"
	OpIsBoolean                = "IsBoolean"
)

// OperandKind is the type a leaf condition's literal value must have.
type OperandKind int

const (
	OperandString OperandKind = iota
	OperandNumber
	OperandBool
)

var operators = map[string]OperandKind{
	OpStringEquals:             OperandString,
	OpStringNotEquals:          OperandString,
	OpStringLessThan:           OperandString,
	OpStringGreaterThan:        OperandString,
	OpStringLessThanEquals:     OperandString,
	OpStringGreaterThanEquals:  OperandString,
	OpStringMatches:            OperandString,
	OpNumericEquals:            OperandNumber,
	OpNumericNotEquals:         OperandNumber,
	OpNumericLessThan:          OperandNumber,
	OpNumericGreaterThan:       OperandNumber,
	OpNumericLessThanEquals:    OperandNumber,
	OpNumericGreaterThanEquals: OperandNumber,
	OpBooleanEquals:            OperandBool,
	OpIsPresent:                OperandBool,
	OpIsNull:                   OperandBool,
	OpIsString:                 OperandBool,
	OpIsNumeric:                OperandBool,
	OpIsBoolean:                OperandBool,
}

// OperatorOperand returns the literal type an operator compares against and
// whether the operator is known.
func OperatorOperand(op string) (OperandKind, bool) {
	k, ok := operators[op]
	return k, ok
}
