package main

import (
	"os"

	_ "github.com/joho/godotenv/autoload" // Autoload .env file.

	"github.com/vietanh2810/jobshadow-api/internal/cmd"
)

// @title           Job Shadow Lottery API
// @version         1.0
// @description     Assigns students to job shadow positions by lottery.
//
// @BasePath  /api/v1
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Bearer token
func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
