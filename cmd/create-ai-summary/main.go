package main

import (
	"os"

	"github.com/tjfontaine/roboto-ai-actions/internal/actions"
	"github.com/tjfontaine/roboto-ai-actions/internal/runtime"
)

func main() {
	os.Exit(runtime.Main(actions.ActionCreateAISummary))
}
