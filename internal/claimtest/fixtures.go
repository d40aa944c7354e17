package claimtest

import (
	"fmt"
	"time"

	"github.com/JaimeStill/claimsync/internal/claims"
)

// Created is the creation time stamped on every fixture claim.
var Created = time.Date(2025, time.January, 10, 12, 34, 56, 0, time.UTC)

// Claim builds a claim at stage with n documents. Document ids are
// id*100+1 through id*100+n and carry OCR and anonymized text derived
// from their id.
func Claim(id claims.ID, stage claims.Stage, n int) *claims.Claim {
	c := &claims.Claim{
		ID:        id,
		Country:   claims.CountrySK,
		Status:    stage,
		CreatedAt: claims.NewTimestamp(Created),
	}
	for i := 1; i <= n; i++ {
		docID := id*100 + claims.ID(i)
		ocr := fmt.Sprintf("ocr text %s", docID)
		anon := fmt.Sprintf("anon text %s", docID)
		c.Documents = append(c.Documents, claims.Document{
			ID:             docID,
			Filename:       fmt.Sprintf("doc-%d.pdf", i),
			S3Key:          fmt.Sprintf("claims/%s/doc-%d.pdf", id, i),
			OriginalText:   &ocr,
			AnonymizedText: &anon,
		})
	}
	return c
}
