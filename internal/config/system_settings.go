package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const DATABASE_TYPE = "GSTEP_DATABASE_TYPE"
const DATABASE_URL = "GSTEP_DATABASE_URL"
const DATABASE_SQLLITE_FILE_NAME = "GSTEP_DATABASE_SQLLITE_FILE_NAME"
const ENGINE_SERVER_WEB_PORT = "GSTEP_ENGINE_SERVER_WEB_PORT"
const ENGINE_EXECUTOR_SIZE = "GSTEP_ENGINE_EXECUTOR_SIZE" //number of workers driving executions in parallel
const ENGINE_QUEUE_SIZE = "GSTEP_ENGINE_QUEUE_SIZE"       //pending executions waiting for a worker
const ENGINE_STUCK_EXECUTIONS_INTERVAL = "GSTEP_ENGINE_STUCK_EXECUTIONS_INTERVAL"
const ENGINE_STUCK_EXECUTIONS_REPAIR_AFTER_MINUTES = "GSTEP_ENGINE_STUCK_EXECUTIONS_REPAIR_AFTER_MINUTES"
const DEFINITIONS_DIR = "GSTEP_DEFINITIONS_DIR"
const HISTORY_SINK = "GSTEP_HISTORY_SINK"
const REDIS_URL = "GSTEP_REDIS_URL"
const REDIS_QUEUE = "GSTEP_REDIS_QUEUE"
const SCHEDULE_TRIGGERS = "GSTEP_SCHEDULE_TRIGGERS" //semicolon separated "<cron spec>=<definition>" pairs
const EVENTS_BACKEND = "GSTEP_EVENTS_BACKEND"
const EVENTS_TOPIC = "GSTEP_EVENTS_TOPIC"
const KAFKA_BROKERS = "GSTEP_KAFKA_BROKERS"
const OTEL_ENABLED = "GSTEP_OTEL_ENABLED"
const LOG_LEVEL = "GSTEP_LOG_LEVEL"

const DATABASE_TYPE_POSTGRES = "POSTGRES"
const DATABASE_TYPE_MYSQL = "MYSQL"
const DATABASE_TYPE_SQLLITE = "SQLLITE"
const DATABASE_TYPE_MEMORY = "MEMORY"

const HISTORY_SINK_DATABASE = "DATABASE"
const HISTORY_SINK_REDIS = "REDIS"
const HISTORY_SINK_MEMORY = "MEMORY"

const EVENTS_BACKEND_GOCHANNEL = "GOCHANNEL"
const EVENTS_BACKEND_KAFKA = "KAFKA"
const EVENTS_BACKEND_NONE = "NONE"

func GetSystemSettingInteger(settingKey string) int {
	val := GetSystemSettingString(settingKey)
	if val != "" {
		intValue, _ := strconv.Atoi(val)
		return intValue
	}
	return 0
}

func GetSystemSettingBool(settingKey string) bool {
	b, _ := strconv.ParseBool(GetSystemSettingString(settingKey))
	return b
}

// GetSystemSettingDuration parses the setting with time.ParseDuration and
// falls back to def when it is empty or malformed.
func GetSystemSettingDuration(settingKey string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(GetSystemSettingString(settingKey))
	if err != nil {
		return def
	}
	return d
}

// GetSystemSettingList splits a comma separated setting, dropping blanks.
func GetSystemSettingList(settingKey string) []string {
	var out []string
	for _, v := range strings.Split(GetSystemSettingString(settingKey), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func GetSystemSettingString(settingKey string) string {
	val := os.Getenv(settingKey)
	if val != "" {
		return val
	}
	switch settingKey {
	case DATABASE_TYPE:
		return DATABASE_TYPE_MEMORY
	case ENGINE_STUCK_EXECUTIONS_INTERVAL:
		return "60s"
	case ENGINE_STUCK_EXECUTIONS_REPAIR_AFTER_MINUTES:
		return "5"
	case ENGINE_EXECUTOR_SIZE:
		return "5"
	case ENGINE_QUEUE_SIZE:
		return "100"
	case ENGINE_SERVER_WEB_PORT:
		return "8080"
	case DATABASE_SQLLITE_FILE_NAME:
		return "./gstep.db"
	case HISTORY_SINK:
		// history follows the execution records unless told otherwise
		if GetSystemSettingString(DATABASE_TYPE) == DATABASE_TYPE_MEMORY {
			return HISTORY_SINK_MEMORY
		}
		return HISTORY_SINK_DATABASE
	case REDIS_URL:
		return "redis://localhost:6379/0"
	case EVENTS_BACKEND:
		return EVENTS_BACKEND_GOCHANNEL
	case EVENTS_TOPIC:
		return "gopherstep.executions"
	case OTEL_ENABLED:
		return "false"
	case LOG_LEVEL:
		return "INFO"
	}
	return ""
}
