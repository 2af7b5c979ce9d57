package platform

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/datallboy/nzbweaver/internal/infra/config"
	"github.com/datallboy/nzbweaver/internal/infra/logger"
)

// Tool is an external binary used during post-processing.
type Tool struct {
	Name       string   // human readable name
	Configured string   // path or name from the config file, may be empty
	Candidates []string // names looked up in PATH when nothing is configured
	Purpose    string
}

// Tools lists the external binaries the post-processor can use.
func Tools(cfg config.DownloadConfig) []Tool {
	return []Tool{
		{Name: "par2", Configured: cfg.Par2Bin, Candidates: []string{"par2"}, Purpose: "verify/repair"},
		{Name: "RAR", Configured: cfg.UnrarBin, Candidates: []string{"unrar"}, Purpose: "RAR extraction"},
		{Name: "7-Zip", Configured: cfg.SevenZipBin, Candidates: []string{"7z", "7za"}, Purpose: "7z extraction"},
		{Name: "ZIP", Candidates: []string{"unzip"}, Purpose: "ZIP extraction"},
	}
}

// ResolveBinary returns the executable to run. A configured value wins and
// must exist; otherwise the candidates are tried in PATH order.
func ResolveBinary(configured string, candidates ...string) (string, error) {
	if configured != "" {
		if strings.ContainsRune(configured, os.PathSeparator) {
			info, err := os.Stat(configured)
			if err != nil {
				return "", fmt.Errorf("configured binary %s: %w", configured, err)
			}
			if info.IsDir() || info.Mode()&0111 == 0 {
				return "", fmt.Errorf("configured binary %s is not executable", configured)
			}
			return configured, nil
		}
		path, err := exec.LookPath(configured)
		if err != nil {
			return "", fmt.Errorf("configured binary '%s' not found in PATH: %w", configured, err)
		}
		return path, nil
	}

	var lastErr error
	for _, name := range candidates {
		path, err := exec.LookPath(name)
		if err == nil {
			return path, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = exec.ErrNotFound
	}
	return "", fmt.Errorf("%s binary not found in PATH: %w", strings.Join(candidates, "/"), lastErr)
}

// ValidateDependencies reports which external tools are usable. Only an
// explicitly configured binary that cannot be found is an error, missing
// optional tools just disable their feature.
func ValidateDependencies(cfg config.DownloadConfig, log *logger.Logger) error {
	for _, tool := range Tools(cfg) {
		path, err := ResolveBinary(tool.Configured, tool.Candidates...)
		if err != nil {
			if tool.Configured != "" {
				return fmt.Errorf("%w: %s: %w", config.ErrConfig, tool.Name, err)
			}
			log.Info("%s not found. %s will be disabled.", tool.Name, tool.Purpose)
			continue
		}
		log.Debug("%s available at %s", tool.Name, path)
	}
	return nil
}
