package domain

import "testing"

func validRequest() AnalyzeRequest {
	return AnalyzeRequest{
		StorageKey:      "uploads/u-1/doc.pdf",
		FileName:        "doc.pdf",
		MimeType:        "application/pdf",
		VaultContext:    VaultPersonal,
		PersonalVaultID: "vault-1",
		UserID:          "u-1",
	}
}

func TestAnalyzeRequestValidateAccepts(t *testing.T) {
	if err := validRequest().Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	org := validRequest()
	org.VaultContext = VaultOrganization
	org.PersonalVaultID = ""
	org.OrganizationID = "org-1"
	if err := org.Validate(); err != nil {
		t.Fatalf("Validate() org error = %v", err)
	}
}

func TestAnalyzeRequestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*AnalyzeRequest)
	}{
		{"missing file name", func(r *AnalyzeRequest) { r.FileName = "" }},
		{"missing mime type", func(r *AnalyzeRequest) { r.MimeType = "" }},
		{"no document source", func(r *AnalyzeRequest) { r.StorageKey = ""; r.FileBase64 = "" }},
		{"unknown vault context", func(r *AnalyzeRequest) { r.VaultContext = "shared" }},
		{"personal without vault id", func(r *AnalyzeRequest) { r.PersonalVaultID = "" }},
		{"organization without org id", func(r *AnalyzeRequest) {
			r.VaultContext = VaultOrganization
			r.OrganizationID = ""
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			tc.mutate(&req)
			err := req.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !IsKind(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestAnalyzeRequestVaultID(t *testing.T) {
	req := validRequest()
	if req.VaultID() != "vault-1" {
		t.Errorf("VaultID() = %q", req.VaultID())
	}

	req.VaultContext = VaultOrganization
	req.OrganizationID = "org-1"
	if req.VaultID() != "org-1" {
		t.Errorf("VaultID() org = %q", req.VaultID())
	}
}
