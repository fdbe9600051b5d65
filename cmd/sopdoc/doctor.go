package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/go-rod/rod/lib/launcher"
	flag "github.com/spf13/pflag"
)

// Doctor status values.
const (
	statusReady    = "ready"
	statusWarnings = "warnings"
	statusErrors   = "errors"
)

// doctorResult is the report printed by the doctor command.
type doctorResult struct {
	Status   string      `json:"status"`
	Chrome   chromeInfo  `json:"chrome"`
	Env      envInfo     `json:"environment"`
	System   systemInfo  `json:"system"`
	Drafts   draftInfo   `json:"drafts"`
	Suggest  suggestInfo `json:"suggest"`
	Warnings []string    `json:"warnings,omitempty"`
	Errors   []string    `json:"errors,omitempty"`
}

func (r *doctorResult) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func (r *doctorResult) fail(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

type chromeInfo struct {
	Found   bool   `json:"found"`
	Path    string `json:"path,omitempty"`
	Version string `json:"version,omitempty"`
	Sandbox bool   `json:"sandbox"`
}

type envInfo struct {
	OS            string `json:"os"`
	Arch          string `json:"arch"`
	CPUs          int    `json:"gomaxprocs"`
	Container     bool   `json:"container"`
	ContainerHint string `json:"container_hint,omitempty"`
	CI            bool   `json:"ci"`
	NoSandbox     string `json:"rod_no_sandbox"`
	BrowserBin    string `json:"rod_browser_bin"`
}

type systemInfo struct {
	TempWritable bool `json:"temp_writable"`
}

type draftInfo struct {
	Enabled  bool   `json:"enabled"`
	Path     string `json:"path,omitempty"`
	Writable bool   `json:"writable"`
}

type suggestInfo struct {
	Configured bool   `json:"configured"`
	Model      string `json:"model,omitempty"`
}

// runDoctorCmd checks that exports can run on this machine.
// Warnings still exit 0; errors exit 1.
func runDoctorCmd(args []string, env *Environment) int {
	fs := newFlagSet("doctor", env.Stderr, printDoctorUsage)
	var (
		common     commonFlags
		jsonOutput bool
	)
	fs.BoolVar(&jsonOutput, "json", false, "print results as JSON")
	addCommonFlags(fs, &common)
	if err := parseFlags(fs, args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitSuccess
		}
		fmt.Fprintf(env.Stderr, "error: %v\n", err)
		return ExitUsage
	}

	result := runDoctor(common, env)
	if jsonOutput {
		enc := json.NewEncoder(env.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
	} else {
		printDoctorResult(env.Stdout, result)
	}

	if result.Status == statusErrors {
		return ExitGeneral
	}
	return ExitSuccess
}

func runDoctor(common commonFlags, env *Environment) *doctorResult {
	r := &doctorResult{
		Env: envInfo{
			OS:         runtime.GOOS,
			Arch:       runtime.GOARCH,
			CPUs:       runtime.GOMAXPROCS(0),
			NoSandbox:  os.Getenv("ROD_NO_SANDBOX"),
			BrowserBin: os.Getenv("ROD_BROWSER_BIN"),
		},
	}

	checkChrome(r)
	checkEnvironment(r)
	checkSystem(r)

	if st, err := loadSettings(common, env); err != nil {
		r.fail("Configuration: %v", err)
	} else {
		checkDrafts(r, st)
		checkSuggest(r, st)
	}

	switch {
	case len(r.Errors) > 0:
		r.Status = statusErrors
	case len(r.Warnings) > 0:
		r.Status = statusWarnings
	default:
		r.Status = statusReady
	}
	return r
}

// checkChrome locates the browser the exporter will launch: ROD_BROWSER_BIN
// when set, otherwise whatever the rod launcher finds.
func checkChrome(r *doctorResult) {
	bin := r.Env.BrowserBin
	if bin == "" {
		found := false
		if bin, found = launcher.LookPath(); !found {
			r.fail("No Chrome or Chromium found; install one or set ROD_BROWSER_BIN")
			return
		}
	}
	if _, err := os.Stat(bin); err != nil {
		r.fail("Browser binary missing at %s", bin)
		return
	}

	r.Chrome = chromeInfo{Found: true, Path: bin, Sandbox: r.Env.NoSandbox != "1"}

	out, err := exec.Command(bin, "--version").Output() // #nosec G204 -- browser path from launcher or ROD_BROWSER_BIN
	if err != nil {
		r.warn("Browser version unavailable: %v", err)
		return
	}
	r.Chrome.Version = strings.TrimSpace(string(out))
}

// checkEnvironment flags a sandboxed browser inside a container or CI run.
func checkEnvironment(r *doctorResult) {
	r.Env.Container, r.Env.ContainerHint = isContainer()
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "CIRCLECI"} {
		if os.Getenv(v) != "" {
			r.Env.CI = true
			break
		}
	}
	if (r.Env.Container || r.Env.CI) && r.Env.NoSandbox != "1" {
		r.warn("Running in a container or CI with the browser sandbox on; set ROD_NO_SANDBOX=1")
	}
}

// isContainer returns whether a container signal is present, and which one.
func isContainer() (bool, string) {
	switch {
	case os.Getenv("SOPDOC_CONTAINER") == "1":
		return true, "SOPDOC_CONTAINER=1"
	case fileExists("/.dockerenv"):
		return true, "/.dockerenv"
	case os.Getenv("container") != "":
		return true, "container=" + os.Getenv("container")
	case os.Getenv("KUBERNETES_SERVICE_HOST") != "":
		return true, "KUBERNETES_SERVICE_HOST"
	}
	return false, ""
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// checkSystem probes the temp directory the browser profile lives in.
func checkSystem(r *doctorResult) {
	tmp := os.TempDir()
	r.System.TempWritable = dirWritable(tmp)
	if !r.System.TempWritable {
		r.fail("Cannot write to the temp directory %s", tmp)
	}
}

// checkDrafts probes the draft database directory. A failure only
// disables autosave, so it is a warning.
func checkDrafts(r *doctorResult, st *settings) {
	r.Drafts.Enabled = st.cfg.Draft.Enabled
	if !r.Drafts.Enabled {
		return
	}
	path, err := st.draftPath()
	if err != nil {
		r.warn("Draft location unknown: %v", err)
		return
	}
	r.Drafts.Path = path

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPermissions); err == nil && dirWritable(dir) {
		r.Drafts.Writable = true
		return
	}
	r.warn("Cannot write drafts to %s; set SOPDOC_DRAFT_PATH or SOPDOC_NO_DRAFT=1", dir)
}

func checkSuggest(r *doctorResult, st *settings) {
	r.Suggest.Model = st.cfg.Suggest.Model
	r.Suggest.Configured = strings.TrimSpace(st.cfg.Suggest.APIKey) != ""
}

// dirWritable creates and removes a probe file in dir.
func dirWritable(dir string) bool {
	f, err := os.CreateTemp(dir, "sopdoc-doctor-*")
	if err != nil {
		return false
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return true
}

// printDoctorResult writes the report grouped by area, then the
// collected warnings and errors, then the verdict.
func printDoctorResult(w io.Writer, r *doctorResult) {
	line := func(tag, format string, args ...any) {
		fmt.Fprintf(w, "  %-7s "+format+"\n", append([]any{"[" + tag + "]"}, args...)...)
	}

	fmt.Fprintf(w, "sopdoc doctor\n\nBrowser\n")
	if r.Chrome.Found {
		line("OK", "%s", r.Chrome.Path)
		if r.Chrome.Version != "" {
			line("OK", "%s", r.Chrome.Version)
		}
		if r.Chrome.Sandbox {
			line("OK", "sandbox on")
		} else {
			line("OK", "sandbox off (ROD_NO_SANDBOX=1)")
		}
	} else {
		line("ERROR", "no browser")
	}

	fmt.Fprintf(w, "\nRuntime\n")
	line("OK", "%s/%s, GOMAXPROCS=%d", r.Env.OS, r.Env.Arch, r.Env.CPUs)
	if r.Env.Container {
		line("OK", "container (%s)", r.Env.ContainerHint)
	}
	if r.Env.CI {
		line("OK", "CI")
	}

	fmt.Fprintf(w, "\nStorage and services\n")
	if r.System.TempWritable {
		line("OK", "temp directory writable")
	} else {
		line("ERROR", "temp directory not writable")
	}
	switch {
	case !r.Drafts.Enabled:
		line("OK", "drafts off")
	case r.Drafts.Writable:
		line("OK", "drafts in %s", r.Drafts.Path)
	default:
		line("WARN", "drafts not writable")
	}
	if r.Suggest.Configured {
		line("OK", "suggestions via %s", r.Suggest.Model)
	} else {
		line("OK", "suggestions off (no API key)")
	}

	for _, group := range []struct {
		title, tag string
		items      []string
	}{
		{"Warnings", "WARN", r.Warnings},
		{"Errors", "ERROR", r.Errors},
	} {
		if len(group.items) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n%s:\n", group.title)
		for _, item := range group.items {
			line(group.tag, "%s", item)
		}
	}

	fmt.Fprintln(w)
	switch r.Status {
	case statusReady:
		fmt.Fprintln(w, "Status: Ready to export")
	case statusWarnings:
		fmt.Fprintln(w, "Status: Ready with warnings")
	case statusErrors:
		fmt.Fprintln(w, "Status: Not ready (see errors above)")
	}
}
