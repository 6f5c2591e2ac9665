package supabase

import (
	"fmt"

	"github.com/google/uuid"

	"print-wizard-backend/internal/models"
)

func (d *DatabaseClient) CreatePrint(print *models.Print) error {
	err := d.db.QueryRow(`
		INSERT INTO prints (id, user_id, name, sku, width_cm, height_cm, is_composite)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, print.ID, print.UserID, print.Name, print.SKU,
		print.WidthCm, print.HeightCm, print.IsComposite).Scan(&print.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create print: %w", err)
	}

	return nil
}

func (d *DatabaseClient) GetPrint(printID, userID uuid.UUID) (*models.Print, error) {
	var print models.Print
	err := d.db.QueryRow(`
		SELECT id, user_id, name, sku, width_cm, height_cm, is_composite, created_at
		FROM prints
		WHERE id = $1 AND user_id = $2
	`, printID, userID).Scan(
		&print.ID, &print.UserID, &print.Name, &print.SKU,
		&print.WidthCm, &print.HeightCm, &print.IsComposite, &print.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get print: %w", err)
	}

	return &print, nil
}

func (d *DatabaseClient) ListPrints(userID uuid.UUID) ([]models.Print, error) {
	rows, err := d.db.Query(`
		SELECT id, user_id, name, sku, width_cm, height_cm, is_composite, created_at
		FROM prints
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list prints: %w", err)
	}
	defer rows.Close()

	var prints []models.Print
	for rows.Next() {
		var print models.Print
		err := rows.Scan(
			&print.ID, &print.UserID, &print.Name, &print.SKU,
			&print.WidthCm, &print.HeightCm, &print.IsComposite, &print.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan print: %w", err)
		}
		prints = append(prints, print)
	}

	return prints, rows.Err()
}

func (d *DatabaseClient) UpdatePrint(print *models.Print) error {
	_, err := d.db.Exec(`
		UPDATE prints
		SET name = $1, sku = $2, width_cm = $3, height_cm = $4, is_composite = $5
		WHERE id = $6 AND user_id = $7
	`, print.Name, print.SKU, print.WidthCm, print.HeightCm, print.IsComposite,
		print.ID, print.UserID)
	return err
}

func (d *DatabaseClient) DeletePrint(printID, userID uuid.UUID) error {
	_, err := d.db.Exec(`
		DELETE FROM prints
		WHERE id = $1 AND user_id = $2
	`, printID, userID)
	return err
}

// UpsertPrintFile replaces whatever artwork currently occupies the slot.
// One file per (print, slot) pair.
func (d *DatabaseClient) UpsertPrintFile(file *models.PrintFile) error {
	err := d.db.QueryRow(`
		INSERT INTO print_files (print_id, type, file_path, public_url, width_cm, height_cm)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (print_id, type)
		DO UPDATE SET file_path = $3, public_url = $4, width_cm = $5, height_cm = $6
		RETURNING id, created_at
	`, file.PrintID, file.Type, file.FilePath, file.PublicURL,
		file.WidthCm, file.HeightCm).Scan(&file.ID, &file.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert print file: %w", err)
	}

	return nil
}

func (d *DatabaseClient) GetPrintFiles(printID uuid.UUID) ([]models.PrintFile, error) {
	rows, err := d.db.Query(`
		SELECT id, print_id, type, file_path, public_url, width_cm, height_cm, created_at
		FROM print_files
		WHERE print_id = $1
		ORDER BY type ASC
	`, printID)
	if err != nil {
		return nil, fmt.Errorf("failed to get print files: %w", err)
	}
	defer rows.Close()

	var files []models.PrintFile
	for rows.Next() {
		var file models.PrintFile
		err := rows.Scan(
			&file.ID, &file.PrintID, &file.Type, &file.FilePath,
			&file.PublicURL, &file.WidthCm, &file.HeightCm, &file.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan print file: %w", err)
		}
		files = append(files, file)
	}

	return files, rows.Err()
}
