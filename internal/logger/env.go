package logger

import (
	"os"
	"strings"
)

// DefaultService — имя в поле service, если конфиг его не задал.
const DefaultService = "chat-service"

type Env string

const (
	EnvDev   Env = "dev"
	EnvStage Env = "stage"
	EnvProd  Env = "prod"
)

// EnvKeys: переменные окружения со средой, по приоритету.
// CHAT_ENV позволяет развести чат и остальные сервисы на одном хосте.
var EnvKeys = []string{"CHAT_ENV", "APP_ENV"}

func DetectEnv() Env {
	for _, key := range EnvKeys {
		if raw, ok := os.LookupEnv(key); ok && strings.TrimSpace(raw) != "" {
			return ParseEnv(raw)
		}
	}
	return EnvDev
}

func ParseEnv(raw string) Env {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "prod", "production":
		return EnvProd
	case "stage", "staging", "preprod", "pre-production":
		return EnvStage
	default:
		return EnvDev
	}
}

// Structured: stage и prod читают сборщики логов, им нужен JSON.
func (e Env) Structured() bool { return e == EnvStage || e == EnvProd }
