// Package hints builds the short "what to try next" lines printed under
// CLI errors. Every hint starts with "\n  hint: " so it can be appended
// to an error message as is.
package hints

import (
	"fmt"
	"os"
	"strings"

	"github.com/alnah/go-sopdoc/internal/fileutil"
)

// ciVars are set by the CI systems whose runners usually need the sandbox off.
var ciVars = []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL"}

// IsInContainer reports whether /.dockerenv exists. Replaceable in tests.
var IsInContainer = func() bool {
	return fileutil.FileExists("/.dockerenv")
}

func inCI() bool {
	for _, v := range ciVars {
		if os.Getenv(v) != "" {
			return true
		}
	}
	return false
}

// ForBrowserConnect suggests the ROD_* variables that are not set yet.
// ROD_NO_SANDBOX is only suggested inside CI or a container.
func ForBrowserConnect() string {
	var parts []string
	if os.Getenv("ROD_NO_SANDBOX") != "1" && (inCI() || IsInContainer()) {
		parts = append(parts, "set ROD_NO_SANDBOX=1 when running in Docker or CI")
	}
	if os.Getenv("ROD_BROWSER_BIN") == "" {
		parts = append(parts, "point ROD_BROWSER_BIN at a Chrome binary")
	}
	return formatHints(parts)
}

// ForTimeout suggests a longer export timeout.
func ForTimeout() string {
	return format("for long procedures or slow image hosts, use --timeout")
}

// ForConfigNotFound suggests --config, and the user config file among
// searchedPaths when there is one.
func ForConfigNotFound(searchedPaths []string) string {
	hint := "pass --config with a file path"
	for _, p := range searchedPaths {
		if strings.Contains(p, ".config/go-sopdoc") {
			return format(hint + " or create " + p)
		}
	}
	return format(hint)
}

func ForOutputDirectory() string {
	return format("make sure the parent directory exists and you can write to it")
}

// ForStyleNotFound lists the embedded styles. Empty when there are none.
func ForStyleNotFound(available []string) string {
	if len(available) == 0 {
		return ""
	}
	return format("embedded styles: " + strings.Join(available, ", "))
}

func ForMalformedDocument() string {
	return format(`a project file is a JSON object with a "meta" object and a "steps" array`)
}

// ForInvalidImage states the accepted formats and the size cap in MB.
func ForInvalidImage(maxBytes int) string {
	return format(fmt.Sprintf("use a PNG, JPEG, GIF or WebP file of at most %d MB", maxBytes>>20))
}

func ForSuggestionsDisabled() string {
	return format("set SOPDOC_API_KEY or GEMINI_API_KEY to enable step suggestions")
}

func format(hint string) string {
	if hint == "" {
		return ""
	}
	return "\n  hint: " + hint
}

func formatHints(parts []string) string {
	if len(parts) == 0 {
		return ""
	}
	return format(strings.Join(parts, "; "))
}
