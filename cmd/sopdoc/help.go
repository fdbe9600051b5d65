package main

import (
	"fmt"
	"io"
)

// printUsage prints the main usage message.
func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: sopdoc <command> [flags] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  new        Create a project file")
	fmt.Fprintln(w, "  edit       Edit metadata and steps of a project file")
	fmt.Fprintln(w, "  pages      Show how steps are laid out on pages")
	fmt.Fprintln(w, "  export     Export project files to PDF")
	fmt.Fprintln(w, "  draft      Show, restore or clear the autosaved draft")
	fmt.Fprintln(w, "  suggest    Draft step descriptions from the title")
	fmt.Fprintln(w, "  doctor     Check system configuration")
	fmt.Fprintln(w, "  version    Show version information")
	fmt.Fprintln(w, "  help       Show help for a command")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'sopdoc help <command>' for details on a specific command.")
}

// printCommonFlags prints the flags shared by every command.
func printCommonFlags(w io.Writer) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Common:")
	fmt.Fprintln(w, "  -c, --config <name>       Config file name or path")
	fmt.Fprintln(w, "  -q, --quiet               Only show errors")
	fmt.Fprintln(w, "  -v, --verbose             Show debug logs and timing")
}

// printMetaFlags prints the document metadata flags.
func printMetaFlags(w io.Writer) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Metadata:")
	fmt.Fprintln(w, "      --title <s>           Procedure title")
	fmt.Fprintln(w, "      --sop-id <s>          SOP reference")
	fmt.Fprintln(w, "      --doc-version <s>     Document revision")
	fmt.Fprintln(w, "      --date <s>            YYYY-MM-DD, DD-MM-YYYY, DD/MM/YYYY or \"today\"")
	fmt.Fprintln(w, "      --cycle-time <s>      Cycle time")
	fmt.Fprintln(w, "      --author <s>          Author name")
}

func printNewUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: sopdoc new [flags] [output.json]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Create a project with one page of placeholder steps.")
	fmt.Fprintln(w, "The file name defaults to the sanitized title.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "      --steps <n>           Number of steps (default: 6)")
	fmt.Fprintln(w, "      --suggest             Fill steps with suggestions for the title")
	fmt.Fprintln(w, "  -f, --force               Replace an existing file")
	printMetaFlags(w)
	printCommonFlags(w)
}

func printEditUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: sopdoc edit <project.json> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Apply edits to a project file. All edits of one invocation form a")
	fmt.Fprintln(w, "single change; if any edit fails, the file is left untouched.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Steps (N is the displayed step number):")
	fmt.Fprintln(w, "      --add <n>             Append n placeholder steps")
	fmt.Fprintln(w, "      --remove <n>          Remove the last n steps")
	fmt.Fprintln(w, "  -s, --step <N=text>       Set a step description (repeatable)")
	fmt.Fprintln(w, "  -i, --image <N=path>      Attach an image file to a step (repeatable)")
	fmt.Fprintln(w, "      --clear-image <N>     Remove a step image (repeatable)")
	fmt.Fprintln(w, "      --fit <N[=mode]>      Set fit to contain, cover or fill; bare N cycles")
	fmt.Fprintln(w, "  -o, --output <path>       Write to another file instead")
	printMetaFlags(w)
	printCommonFlags(w)
}

func printPagesUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: sopdoc pages <project.json> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Show the page layout: six slots per page, numbered across pages.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "      --json                Print the layout as JSON")
	printCommonFlags(w)
}

func printExportUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: sopdoc export <project.json|dir>... [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Export projects to PDF, one A4 landscape page per six steps.")
	fmt.Fprintln(w, "A single project is named after its title; projects found in a")
	fmt.Fprintln(w, "directory keep their file name.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Output:")
	fmt.Fprintln(w, "  -o, --output <path>       Output directory, or .pdf file for one project")
	fmt.Fprintln(w, "  -w, --workers <n>         Parallel exporters (0 = auto)")
	fmt.Fprintln(w, "  -t, --timeout <d>         Per-export timeout (e.g., 30s, 2m)")
	fmt.Fprintln(w, "      --html                Also write the printable HTML")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Rendering:")
	fmt.Fprintln(w, "      --style <name>        Stylesheet name")
	fmt.Fprintln(w, "      --asset-path <dir>    Custom asset directory")
	fmt.Fprintln(w, "      --date-format <s>     Footer date: tokens YYYY, MM, MMMM, DD, D")
	fmt.Fprintln(w, "                            or presets iso, sop, european, us, long")
	fmt.Fprintln(w, "      --scale <f>           Device scale factor (default: 3)")
	fmt.Fprintln(w, "      --quality <n>         JPEG quality 1-100 (default: 95)")
	fmt.Fprintln(w, "      --background <color>  Page background color")
	fmt.Fprintln(w, "      --no-cross-origin     Do not load remote images into pages")
	printCommonFlags(w)
}

func printDraftUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: sopdoc draft <show|restore|clear> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Editing commands autosave the latest document to a draft slot.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Subcommands:")
	fmt.Fprintln(w, "  show                      Summarize the draft")
	fmt.Fprintln(w, "      --json                Print the draft as a project file")
	fmt.Fprintln(w, "      --yaml                Print the draft as YAML")
	fmt.Fprintln(w, "  restore [output.json]     Write the draft to a project file")
	fmt.Fprintln(w, "  -f, --force               Replace an existing file")
	fmt.Fprintln(w, "  clear                     Delete the draft")
	printCommonFlags(w)
}

func printSuggestUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: sopdoc suggest <project.json> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Ask the suggestion service for step descriptions matching the")
	fmt.Fprintln(w, "project title. Requires SOPDOC_API_KEY or GEMINI_API_KEY.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -n, --count <n>           Steps to request (default: 6)")
	fmt.Fprintln(w, "      --apply               Replace the steps with the suggestions")
	printCommonFlags(w)
}

func printDoctorUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: sopdoc doctor [--json]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Check Chrome, sandbox, draft storage and suggestion settings.")
}

// usages maps command names to their usage printer.
var usages = map[string]func(io.Writer){
	"new":     printNewUsage,
	"edit":    printEditUsage,
	"pages":   printPagesUsage,
	"export":  printExportUsage,
	"draft":   printDraftUsage,
	"suggest": printSuggestUsage,
	"doctor":  printDoctorUsage,
}

// runHelp prints help for a specific command.
func runHelp(args []string, env *Environment) int {
	if len(args) == 0 {
		printUsage(env.Stdout)
		return ExitSuccess
	}

	switch name := args[0]; {
	case name == "version":
		fmt.Fprintln(env.Stdout, "Usage: sopdoc version")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Show version information.")
	case name == "help":
		fmt.Fprintln(env.Stdout, "Usage: sopdoc help [command]")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Show help for a command.")
	case isCommand(name):
		usages[name](env.Stdout)
	default:
		fmt.Fprintf(env.Stderr, "Unknown command: %s\n", name)
		printUsage(env.Stderr)
		return ExitUsage
	}
	return ExitSuccess
}
