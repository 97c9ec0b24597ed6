package sync

import (
	"path"

	"github.com/Inna0915/obsidian-confluence-flow/internal/confluence"
	"github.com/Inna0915/obsidian-confluence-flow/internal/converter"
)

// PathInfo is the derived placement of one page: the folder to ensure
// and the file to write. Recomputed on every pass, never cached, since
// titles and structure can change remotely.
type PathInfo struct {
	FolderPath string
	FilePath   string
}

// ResolvePaths computes the local placement for the full batch of pages
// to be synced this pass.
//
// A page whose identifier appears in another page's ancestor chain is a
// parent: it gets a same-named subfolder holding its own file and its
// descendants. Leaves are placed directly in the folder derived from
// their ancestor chain, keeping leaf-heavy trees flat. Configured roots
// are the sync boundary and are never materialized as folders.
func ResolvePaths(pages []confluence.Page, rootIDs []string, basePath string) map[string]PathInfo {
	roots := make(map[string]bool, len(rootIDs))
	for _, id := range rootIDs {
		roots[id] = true
	}

	// Mark every ancestor that has at least one descendant in the batch.
	parents := make(map[string]bool)
	for i := range pages {
		for _, anc := range pages[i].Ancestors {
			parents[anc.ID] = true
		}
	}

	infos := make(map[string]PathInfo, len(pages))
	for i := range pages {
		page := &pages[i]

		segments := []string{basePath}
		for _, anc := range page.Ancestors {
			if roots[anc.ID] {
				continue
			}
			segments = append(segments, converter.SanitizeTitle(anc.Title))
		}

		title := converter.SanitizeTitle(page.Title)
		folder := path.Join(segments...)
		if parents[page.ID] && !roots[page.ID] {
			// Parent pages get their own same-named subfolder. Roots do
			// not: they are the sync boundary, never part of the tree,
			// so their own file lands directly in the base folder like
			// their children do.
			folder = path.Join(folder, title)
		}

		infos[page.ID] = PathInfo{
			FolderPath: folder,
			FilePath:   path.Join(folder, title+".md"),
		}
	}

	return infos
}
