package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jask/overlayhost/internal/database"
)

// MaintenanceService houses destructive/ops actions on the journal database.
type MaintenanceService struct {
	DB *sql.DB
}

// Reset wipes every recorded overlay event. The schema stays so a running
// journal can keep writing.
func (s *MaintenanceService) Reset(ctx context.Context) (int64, error) {
	if s.DB == nil {
		return 0, fmt.Errorf("maintenance: db not configured")
	}
	var n int64
	if err := database.WithTx(s.DB, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM overlay_events")
		if err != nil {
			return fmt.Errorf("reset overlay_events: %w", err)
		}
		n, err = res.RowsAffected()
		return err
	}); err != nil {
		return 0, err
	}
	_, _ = s.DB.ExecContext(ctx, "VACUUM")
	return n, nil
}
