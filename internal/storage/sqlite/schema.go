package sqlite

// runMigrations defines the schema of a per-run database.
var runMigrations = []migration{
	{
		version: 1,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS run_items (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				run_id TEXT NOT NULL,
				query_id TEXT NOT NULL DEFAULT '',
				query_text TEXT NOT NULL,
				domain TEXT NOT NULL,
				search_query TEXT NOT NULL,
				title TEXT NOT NULL DEFAULT '',
				snippet TEXT NOT NULL DEFAULT '',
				raw_url TEXT NOT NULL DEFAULT '',
				final_url TEXT NOT NULL DEFAULT '',
				normalized_url TEXT NOT NULL DEFAULT '',
				normalization_error TEXT NOT NULL DEFAULT '',
				html_path TEXT NOT NULL DEFAULT '',
				visible_text TEXT NOT NULL DEFAULT '',
				fetch_status INTEGER NOT NULL DEFAULT 0,
				fetch_error TEXT NOT NULL DEFAULT '',
				extract_error TEXT NOT NULL DEFAULT '',
				skip_reason TEXT NOT NULL DEFAULT '',
				cache_key TEXT NOT NULL DEFAULT '',
				cached_at TEXT NOT NULL DEFAULT '',
				cache_expires_at TEXT NOT NULL DEFAULT '',
				last_seen_at TEXT NOT NULL DEFAULT '',
				is_duplicate INTEGER NOT NULL DEFAULT 0,
				is_hidden INTEGER NOT NULL DEFAULT 0,
				canonical_id INTEGER NOT NULL DEFAULT 0,
				duplicate_count INTEGER NOT NULL DEFAULT 0,
				score REAL NOT NULL DEFAULT 0,
				scored INTEGER NOT NULL DEFAULT 0,
				score_model TEXT NOT NULL DEFAULT '',
				scored_at TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE INDEX IF NOT EXISTS idx_run_items_run_id ON run_items(run_id)`,
			`CREATE INDEX IF NOT EXISTS idx_run_items_cache_key ON run_items(cache_key)`,
			`CREATE INDEX IF NOT EXISTS idx_run_items_normalized_url ON run_items(normalized_url)`,
		},
	},
}

// evaluationMigrations defines the schema of the evaluation store.
var evaluationMigrations = []migration{
	{
		version: 1,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS evaluation_runs (
				evaluation_id TEXT PRIMARY KEY,
				status TEXT NOT NULL,
				dataset_id TEXT NOT NULL DEFAULT '',
				eval_workers INTEGER NOT NULL DEFAULT 0,
				total_models INTEGER NOT NULL DEFAULT 0,
				completed_models INTEGER NOT NULL DEFAULT 0,
				failed_models INTEGER NOT NULL DEFAULT 0,
				started_at TEXT NOT NULL DEFAULT '',
				completed_at TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE TABLE IF NOT EXISTS evaluation_results (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				evaluation_id TEXT NOT NULL,
				model_id TEXT NOT NULL,
				model_version TEXT NOT NULL,
				status TEXT NOT NULL,
				precision_score REAL NOT NULL DEFAULT 0,
				recall_score REAL NOT NULL DEFAULT 0,
				f1_score REAL NOT NULL DEFAULT 0,
				accuracy_score REAL NOT NULL DEFAULT 0,
				error_message TEXT NOT NULL DEFAULT '',
				evaluated_at TEXT NOT NULL DEFAULT '',
				UNIQUE(evaluation_id, model_id, model_version)
			)`,
			`CREATE TABLE IF NOT EXISTS active_models (
				model_id TEXT PRIMARY KEY,
				model_version TEXT NOT NULL,
				is_active INTEGER NOT NULL DEFAULT 0,
				activated_at TEXT NOT NULL DEFAULT '',
				activated_by TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE TABLE IF NOT EXISTS model_activation_history (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				model_id TEXT NOT NULL,
				model_version TEXT NOT NULL,
				action TEXT NOT NULL,
				actor TEXT NOT NULL DEFAULT '',
				occurred_at TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE TABLE IF NOT EXISTS retrain_jobs (
				job_id TEXT PRIMARY KEY,
				model_id TEXT NOT NULL,
				status TEXT NOT NULL,
				previous_version TEXT NOT NULL DEFAULT '',
				new_version TEXT NOT NULL DEFAULT '',
				label_count INTEGER NOT NULL DEFAULT 0,
				artifact_path TEXT NOT NULL DEFAULT '',
				reason TEXT NOT NULL DEFAULT '',
				triggered_by TEXT NOT NULL DEFAULT '',
				started_at TEXT NOT NULL DEFAULT '',
				completed_at TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE INDEX IF NOT EXISTS idx_eval_results_eval_id ON evaluation_results(evaluation_id)`,
			`CREATE INDEX IF NOT EXISTS idx_retrain_jobs_status ON retrain_jobs(status)`,
		},
	},
}

// quotaMigrations defines the schema of the quota ledger.
var quotaMigrations = []migration{
	{
		version: 1,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS quota_usage (
				day TEXT NOT NULL,
				run_id TEXT NOT NULL,
				calls INTEGER NOT NULL DEFAULT 0,
				updated_at TEXT NOT NULL DEFAULT '',
				PRIMARY KEY (day, run_id)
			)`,
		},
	},
}
