package domain

import "fmt"

// Folder is one row of a vault's flat folder table. ParentID is empty for
// root folders.
type Folder struct {
	ID       string
	Name     string
	ParentID string
}

// FolderInfo is a folder annotated with its full materialized path,
// the form the classifier prompt and folder matching work with.
type FolderInfo struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Path         string   `json:"path"`
	PathSegments []string `json:"pathSegments"`
	ParentID     string   `json:"parentId,omitempty"`
}

// MaterializeFolderPaths builds each folder's full path by walking parent
// links to the root. A parent id missing from the set terminates the walk at
// that point; a cycle fails with ErrFolderCycle instead of looping.
func MaterializeFolderPaths(folders []Folder) ([]FolderInfo, error) {
	byID := make(map[string]Folder, len(folders))
	for _, f := range folders {
		byID[f.ID] = f
	}

	infos := make([]FolderInfo, 0, len(folders))
	for _, f := range folders {
		segments, err := walkFolderPath(f.ID, byID)
		if err != nil {
			return nil, err
		}
		infos = append(infos, FolderInfo{
			ID:           f.ID,
			Name:         f.Name,
			Path:         joinPath(segments),
			PathSegments: segments,
			ParentID:     f.ParentID,
		})
	}
	return infos, nil
}

func walkFolderPath(folderID string, byID map[string]Folder) ([]string, error) {
	var segments []string
	visited := make(map[string]bool)

	currentID := folderID
	for currentID != "" {
		if visited[currentID] {
			return nil, WrapError(ErrFolderCycle, "materialize folder path",
				fmt.Errorf("folder %s revisits %s", folderID, currentID))
		}
		visited[currentID] = true

		folder, ok := byID[currentID]
		if !ok {
			break
		}
		segments = append([]string{folder.Name}, segments...)
		currentID = folder.ParentID
	}
	return segments, nil
}

func joinPath(segments []string) string {
	path := ""
	for i, s := range segments {
		if i > 0 {
			path += "/"
		}
		path += s
	}
	return path
}
