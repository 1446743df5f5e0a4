package main

import (
	"github.com/joho/godotenv"

	"github.com/eduramiba/auth0-pkce-login/internal/cli"
)

func main() {
	// A .env file in the working directory can supply AUTH0_DOMAIN and
	// AUTH0_CLIENT_ID overrides. Absence is not an error.
	_ = godotenv.Load()

	cli.Execute()
}
