package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/Dosada05/matchday/models"
)

// ReportKey is the object key of the archived report of a fixture's match.
func ReportKey(tenantID models.TenantID, fixtureID int) string {
	return fmt.Sprintf("reports/tenant_%d/fixture_%d.json", tenantID, fixtureID)
}

// ReportArchive keeps a copy of each computed match report in object storage so it can
// be served without hitting the database.
type ReportArchive struct {
	store ObjectStore
}

func NewReportArchive(store ObjectStore) *ReportArchive {
	return &ReportArchive{store: store}
}

func (a *ReportArchive) Archive(ctx context.Context, tenantID models.TenantID, fixtureID int, report json.RawMessage) (string, error) {
	if !json.Valid(report) {
		return "", fmt.Errorf("report for fixture %d is not valid JSON", fixtureID)
	}
	res, err := a.store.Put(ctx, ReportKey(tenantID, fixtureID), "application/json", bytes.NewReader(report))
	if err != nil {
		return "", err
	}
	return res.Location, nil
}

func (a *ReportArchive) Remove(ctx context.Context, tenantID models.TenantID, fixtureID int) error {
	return a.store.Delete(ctx, ReportKey(tenantID, fixtureID))
}
