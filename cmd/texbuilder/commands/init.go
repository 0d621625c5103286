package commands

import (
	"fmt"
	"path/filepath"

	"git.home.luguber.info/inful/texbuilder/internal/config"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force  bool   `help:"Overwrite existing configuration file"`
	Output string `short:"o" name:"output" help:"Directory to write texbuilder.yaml into"`
}

func (i *InitCmd) Run(_ *Global, root *CLI) error {
	switch {
	case i.Output != "":
		return RunInit(filepath.Join(i.Output, DefaultConfigFile), i.Force)
	case root.Config != "":
		return RunInit(root.Config, i.Force)
	default:
		return RunInit(DefaultConfigFile, i.Force)
	}
}

// RunInit writes an example configuration to configPath.
func RunInit(configPath string, force bool) error {
	fmt.Printf("Writing configuration to %s\n", configPath)
	if err := config.Init(configPath, force); err != nil {
		return err
	}
	fmt.Println(successLabel.Sprint("initialized successfully"))
	return nil
}
