package domain

import (
	"errors"
	"testing"
)

func TestMaterializeFolderPathsBuildsFullPaths(t *testing.T) {
	folders := []Folder{
		{ID: "root", Name: "Taxes"},
		{ID: "child", Name: "2025", ParentID: "root"},
		{ID: "leaf", Name: "Receipts", ParentID: "child"},
	}

	infos, err := MaterializeFolderPaths(folders)
	if err != nil {
		t.Fatalf("MaterializeFolderPaths() error = %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("expected 3 infos, got %d", len(infos))
	}

	byID := map[string]FolderInfo{}
	for _, info := range infos {
		byID[info.ID] = info
	}
	if byID["leaf"].Path != "Taxes/2025/Receipts" {
		t.Errorf("leaf path = %q", byID["leaf"].Path)
	}
	if got := byID["child"].PathSegments; len(got) != 2 || got[0] != "Taxes" || got[1] != "2025" {
		t.Errorf("child segments = %v", got)
	}
	if byID["root"].Path != "Taxes" {
		t.Errorf("root path = %q", byID["root"].Path)
	}
}

func TestMaterializeFolderPathsStopsAtMissingParent(t *testing.T) {
	infos, err := MaterializeFolderPaths([]Folder{
		{ID: "orphan", Name: "Medical", ParentID: "gone"},
	})
	if err != nil {
		t.Fatalf("MaterializeFolderPaths() error = %v", err)
	}
	if infos[0].Path != "Medical" {
		t.Errorf("orphan path = %q", infos[0].Path)
	}
}

func TestMaterializeFolderPathsDetectsCycle(t *testing.T) {
	_, err := MaterializeFolderPaths([]Folder{
		{ID: "a", Name: "A", ParentID: "b"},
		{ID: "b", Name: "B", ParentID: "a"},
	})
	if !errors.Is(err, ErrFolderCycle) {
		t.Fatalf("expected ErrFolderCycle, got %v", err)
	}
}

func TestMaterializeFolderPathsSelfParentIsACycle(t *testing.T) {
	_, err := MaterializeFolderPaths([]Folder{
		{ID: "a", Name: "A", ParentID: "a"},
	})
	if !errors.Is(err, ErrFolderCycle) {
		t.Fatalf("expected ErrFolderCycle, got %v", err)
	}
}
