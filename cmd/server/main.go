package main

import (
	"fmt"
	"os"
)

// @title           AcademVault Discussions API
// @version         1.0
// @description     Discussions with invite codes, memberships, an append-only message log with cursor polling, notifications and realtime push.

// @contact.name   AcademVault Platform
// @contact.email  platform@academvault.local

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      api.localhost
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
