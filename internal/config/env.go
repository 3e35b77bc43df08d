package config

import "github.com/joho/godotenv"

// LoadEnv loads .env files into the process environment, keeping variables
// that are already set. It must run before log.NewLogger.
func LoadEnv(filenames ...string) error {
	return godotenv.Load(filenames...)
}
