package background

import (
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	sqlx "github.com/jmoiron/sqlx" //make alias name the package to sqlx
	_ "modernc.org/sqlite"
)

func ConnectToDatabase(user string, pass string, host string, dbname string) (*sqlx.DB, error) {
	port := "3306"
	dbURI := fmt.Sprintf("%s:%s@(%s:%s)/%s?parseTime=true", user, pass, host, port, dbname)
	db, err := sqlx.Connect("mysql", dbURI)
	return db, err
}

// OpenConditionsFile opens a local sqlite copy of the conditions database.
func OpenConditionsFile(path string) (*sqlx.DB, error) {
	return sqlx.Connect("sqlite", path)
}

// OpenDatabase connects with the driver selected in the configuration.
func OpenDatabase(config Configuration) (*sqlx.DB, error) {
	switch config.DBDriver {
	case "sqlite":
		return OpenConditionsFile(config.DBName)
	case "mysql", "":
		return ConnectToDatabase(config.User, config.Passwd, config.Host, config.DBName)
	}
	return nil, fmt.Errorf("unknown database driver %q", config.DBDriver)
}

// RunGeometry is the tower binning of the two hadronic layers valid for a
// run. The retowered EMCal uses the inner HCal binning.
type RunGeometry struct {
	IHCal *UniformGeometry
	OHCal *UniformGeometry
}

// Publish registers both geometries as run nodes.
func (g RunGeometry) Publish(tree *NodeTree) error {
	if err := tree.AddRunNode("", TowerGeomIHName, Geometry(g.IHCal)); err != nil {
		return err
	}
	return tree.AddRunNode("", TowerGeomOHName, Geometry(g.OHCal))
}

// DefaultRunGeometry builds the geometry without a database, from the
// configured binning.
func DefaultRunGeometry(config Configuration) (RunGeometry, error) {
	var geometry RunGeometry
	var err error
	for _, layer := range []Layer{LayerIHCal, LayerOHCal} {
		def := DefaultGeometry(layer)
		geom, errGeom := NewUniformGeometry(layer, config.EtaBins, config.PhiBins, def.EtaMin, def.EtaMax, def.PhiMin)
		if errGeom != nil {
			err = errGeom
			break
		}
		if layer == LayerIHCal {
			geometry.IHCal = geom
		} else {
			geometry.OHCal = geom
		}
	}
	return geometry, err
}

// LoadGeometry reads the tower binning of both hadronic layers valid for
// the run.
func LoadGeometry(db *sqlx.DB, runNumber int) (RunGeometry, error) {
	query := "SELECT Layer, EtaBins, PhiBins, EtaMin, EtaMax, PhiMin FROM TowerGeometry WHERE MinRun <= ? and MaxRun >= ? ORDER BY Layer"
	query = db.Rebind(query)

	if configuration.Verbosity > 0 {
		logger.Info("Tower geometry read from DB", "database")
	}
	if configuration.Verbosity > 2 {
		message := fmt.Sprintf("Query: %s (run %d)", query, runNumber)
		logger.Info(message, "database")
	}

	rows, err := db.Queryx(query, runNumber, runNumber)
	if err != nil {
		errMessage := fmt.Errorf("error querying database: %w", err)
		return RunGeometry{}, errMessage
	}
	defer rows.Close()

	var geometry RunGeometry
	for rows.Next() {
		result := &UniformGeometry{}
		err := rows.StructScan(result)
		if err != nil {
			errMessage := fmt.Errorf("error scanning DB row: %w", err)
			return RunGeometry{}, errMessage
		}
		if err := result.Validate(); err != nil {
			return RunGeometry{}, err
		}
		switch result.Layer {
		case LayerIHCal:
			geometry.IHCal = result
		case LayerOHCal:
			geometry.OHCal = result
		}
	}
	if err := rows.Err(); err != nil {
		return RunGeometry{}, fmt.Errorf("error reading DB rows: %w", err)
	}

	if geometry.IHCal == nil {
		return RunGeometry{}, &ErrMissingGeometry{Layer: LayerIHCal, Err: fmt.Errorf("no entry for run %d", runNumber)}
	}
	if geometry.OHCal == nil {
		return RunGeometry{}, &ErrMissingGeometry{Layer: LayerOHCal, Err: fmt.Errorf("no entry for run %d", runNumber)}
	}
	return geometry, nil
}
