package main

import (
	"os"

	"parley/cmd"
)

// @title                       Parley API
// @version                     1.0
// @description                 Conversational AI backend
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
