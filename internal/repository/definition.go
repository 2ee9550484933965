package repository

import (
	"database/sql"
	"errors"

	"github.com/RealZimboGuy/gopherstep/pkg/gopherstep/domain"
)

type DefinitionRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewDefinitionRepository(db *sql.DB, dialect Dialect) *DefinitionRepository {
	return &DefinitionRepository{db: db, dialect: dialect}
}

// Save inserts a definition or updates the existing one by name. The
// original created timestamp is kept on update.
func (r *DefinitionRepository) Save(def *domain.StoredDefinition) error {
	values := `(name, description, digest, document, created, updated, flow_chart)
		VALUES (` + r.dialect.placeholders(1, 7) + `)`
	var query string
	if r.dialect == MySQL {
		query = `INSERT INTO definitions ` + values + `
		ON DUPLICATE KEY UPDATE description = VALUES(description),
			digest = VALUES(digest),
			document = VALUES(document),
			updated = VALUES(updated),
			flow_chart = VALUES(flow_chart)`
	} else {
		query = `INSERT INTO definitions ` + values + `
		ON CONFLICT (name)
		DO UPDATE SET description = EXCLUDED.description,
			digest = EXCLUDED.digest,
			document = EXCLUDED.document,
			updated = EXCLUDED.updated,
			flow_chart = EXCLUDED.flow_chart`
	}
	_, err := r.db.Exec(query, def.Name, def.Description, def.Digest, def.Document,
		r.dialect.formatDate(def.Created), r.dialect.formatDate(def.Updated), def.FlowChart)
	return err
}

// FindByName fetches a definition by its unique name, nil when absent.
func (r *DefinitionRepository) FindByName(name string) (*domain.StoredDefinition, error) {
	query := `
		SELECT name, description, digest, document, created, updated, flow_chart
		FROM definitions WHERE name = ` + r.dialect.placeholder(1)
	var def domain.StoredDefinition
	err := r.db.QueryRow(query, name).Scan(
		&def.Name,
		&def.Description,
		&def.Digest,
		&def.Document,
		&def.Created,
		&def.Updated,
		&def.FlowChart,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &def, nil
}

// FindAll returns all definitions ordered by name.
func (r *DefinitionRepository) FindAll() ([]*domain.StoredDefinition, error) {
	query := `
		SELECT name, description, digest, document, created, updated, flow_chart
		FROM definitions
		ORDER BY name`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	defs := make([]*domain.StoredDefinition, 0)
	for rows.Next() {
		var d domain.StoredDefinition
		if err := rows.Scan(&d.Name, &d.Description, &d.Digest, &d.Document, &d.Created, &d.Updated, &d.FlowChart); err != nil {
			return nil, err
		}
		defs = append(defs, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return defs, nil
}
