package builders

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
)

// CleanupExtensions are the build byproducts removed next to the root file.
var CleanupExtensions = []string{
	".aux", ".blg", ".bbl", ".dvi", ".xdv", ".fdb_latexmk", ".fls", ".idx",
	".ilg", ".ind", ".log", ".nav", ".out", ".snm", ".synctex.gz", ".toc",
	".ist", ".glo", ".glg", ".acn", ".alg", ".bcf", ".run.xml", ".out.ps",
	".gls", ".acr",
}

// Cleanup removes the byproducts of building rootFile. Missing files are
// ignored; other failures are joined into the returned error after every
// file was tried.
func Cleanup(rootFile string) error {
	base := strings.TrimSuffix(rootFile, filepath.Ext(rootFile))
	var errs []error
	for _, ext := range CleanupExtensions {
		if err := os.Remove(base + ext); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}
