// main is the entrypoint of the shellcache CLI.
package main

import (
	"os"

	"github.com/huangsam/shellcache/cmd"
	"github.com/huangsam/shellcache/internal/contract"
	"github.com/huangsam/shellcache/internal/iocache"
)

func main() {
	cmd.SetCacheManager(iocache.Manager)
	err := cmd.Execute()
	iocache.CloseStore()
	if err != nil {
		contract.LogWarn("Command failed", err)
		os.Exit(1)
	}
}
