package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/vault-doc-analyzer/internal/core/domain"
)

func TestFolderRepositoryListByVault(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "name", "parent_id"}).
		AddRow("f-1", "Bills", nil).
		AddRow("f-2", "Utilities", "f-1")

	mock.ExpectQuery("FROM folders").
		WithArgs("personal", "v-1").
		WillReturnRows(rows)

	repo := NewFolderRepository(db)
	folders, err := repo.ListByVault(context.Background(), domain.VaultPersonal, "v-1")
	if err != nil {
		t.Fatalf("ListByVault() error = %v", err)
	}

	if len(folders) != 2 {
		t.Fatalf("len = %d", len(folders))
	}
	if folders[0].ParentID != "" {
		t.Errorf("root parent = %q, want empty", folders[0].ParentID)
	}
	if folders[1].ParentID != "f-1" {
		t.Errorf("child parent = %q", folders[1].ParentID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestFolderRepositoryListByVaultEmpty(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("FROM folders").
		WithArgs("organization", "org-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "parent_id"}))

	repo := NewFolderRepository(db)
	folders, err := repo.ListByVault(context.Background(), domain.VaultOrganization, "org-1")
	if err != nil {
		t.Fatalf("ListByVault() error = %v", err)
	}
	if len(folders) != 0 {
		t.Errorf("len = %d, want 0", len(folders))
	}
}

func TestFolderRepositoryListByVaultQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("FROM folders").
		WithArgs("personal", "v-1").
		WillReturnError(errors.New("connection reset"))

	repo := NewFolderRepository(db)
	if _, err := repo.ListByVault(context.Background(), domain.VaultPersonal, "v-1"); err == nil {
		t.Fatal("expected error")
	}
}

func TestFolderRepositoryEnsureSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WithArgs(int64(2026031101)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS folders").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	repo := NewFolderRepository(db)
	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
