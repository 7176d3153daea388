// main is the entry point for the tzcluster CLI.
package main

import (
	"github.com/huangsam/tzcluster/cmd"
	"github.com/huangsam/tzcluster/internal/contract"
	"github.com/huangsam/tzcluster/internal/persist"
)

func main() {
	cmd.SetStoreManager(persist.Manager)

	err := cmd.Execute()
	persist.CloseStore()
	if shutdownErr := cmd.Shutdown(); shutdownErr != nil {
		contract.LogWarn("Cannot close log file", shutdownErr)
	}
	if err != nil {
		contract.LogFatal("Cannot execute command", err)
	}
}
