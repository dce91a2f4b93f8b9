package database

// SQL for the telemetry tables

const (
	// LoadPredictionsTableSQL creates the load_predictions table. date is the
	// forecast day as sent by the caller; timestamp is when it was served.
	LoadPredictionsTableSQL = `
		CREATE TABLE IF NOT EXISTS load_predictions (
			request_id String,
			date Date,
			temperature Float64,
			humidity Float64,
			season LowCardinality(String),
			daytype LowCardinality(String),
			predicted_load Float64,
			timestamp DateTime64(3, 'UTC')
		) ENGINE = MergeTree()
		ORDER BY (season, timestamp)
		PARTITION BY toYYYYMM(timestamp)
	`

	insertPredictionSQL = `
		INSERT INTO load_predictions (request_id, date, temperature, humidity, season, daytype, predicted_load, timestamp)
	`

	recentPredictionsSQL = `
		SELECT request_id, toString(date), temperature, humidity, season, daytype, predicted_load, timestamp
		FROM load_predictions
		ORDER BY timestamp DESC
		LIMIT ?
	`
)

// AllTables returns all table creation SQL statements
func AllTables() []string {
	return []string{
		LoadPredictionsTableSQL,
	}
}
