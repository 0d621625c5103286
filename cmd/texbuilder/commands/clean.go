package commands

import (
	"fmt"
	"os"

	"git.home.luguber.info/inful/texbuilder/internal/builders"
	"git.home.luguber.info/inful/texbuilder/internal/foundation/errors"
)

// CleanCmd implements the 'clean' command.
type CleanCmd struct {
	Root string `arg:"" name:"root" help:"Root .tex file"`
}

func (c *CleanCmd) Run(_ *Global, _ *CLI) error {
	rootFile, err := rootFileArg(c.Root)
	if err != nil {
		return err
	}
	if err := builders.Cleanup(rootFile); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to remove build files").
			WithContext("root_file", rootFile).Build()
	}
	fmt.Fprintf(os.Stdout, "Removed build files for %s\n", rootFile)
	return nil
}
