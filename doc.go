// Package sopdoc is the core of a standard operating procedure (SOP)
// editor: a document of metadata and ordered steps, laid out six steps per
// A4 landscape page, with linear undo/redo, a debounced draft autosave and
// a PDF export that rasterizes every page in headless Chrome.
//
// # Quick Start
//
// A Session is one editor lifetime. Create it, edit, export, close:
//
//	exp, err := sopdoc.NewExporter()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer exp.Close()
//
//	s, err := sopdoc.NewSession(sopdoc.WithExporter(exp))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
//	_ = s.UpdateMeta(sopdoc.MetaTitle, "Line Clearance")
//	s.AddStep()
//
//	art, err := s.Export(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.WriteFile(art.Filename, art.Data, 0644)
//
// # Editing and History
//
// Button-like actions (AddStep, RemoveLastStep, ApplySuggestedSteps) record
// one undo entry each. Continuous field edits are bracketed by BeginEdit and
// CommitEdit (focus and blur) and record one entry per scope, only when the
// document actually changed:
//
//	s.BeginEdit()
//	s.UpdateStep(id, sopdoc.DescriptionPatch("Check"))
//	s.UpdateStep(id, sopdoc.DescriptionPatch("Check the line"))
//	s.CommitEdit() // one entry
//
// Load, Replace and Reset clear the history.
//
// # Pagination
//
// Paginate splits steps into pages of PageCapacity slots. The last page is
// padded with empty slots and an empty document still yields one page.
// Step numbers are global: slot i of page p shows (p-1)*6 + i + 1.
//
// # Export
//
// Exporter renders the document to HTML (one .sop-page-export element per
// page), waits for fonts and images to settle, rasterizes each page in
// order and assembles a PDF with one full-bleed image per page. A failed
// image never fails the export; any other failure returns an error wrapping
// ErrExportFailed and no artifact. Use ExporterPool to export several
// documents in parallel.
//
// # Persistence
//
// With WithStore, every change schedules a debounced save of the whole
// document to a single draft slot (SQLite via OpenDraftStore, or memory).
// Restore loads it back; a malformed draft is logged and ignored.
//
// # Error Handling
//
// Errors wrap the sentinels declared in errors.go and are checked with
// errors.Is:
//
//	if errors.Is(err, sopdoc.ErrMalformedDocument) {
//	    // reject the project file
//	}
package sopdoc
