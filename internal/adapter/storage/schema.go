package storage

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS sellers (
		id VARCHAR(64) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		email VARCHAR(255) NOT NULL,
		store_name VARCHAR(255) NOT NULL,
		status VARCHAR(16) NOT NULL,
		commission_bps INT NOT NULL DEFAULT 0,
		version INT NOT NULL DEFAULT 0,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		UNIQUE KEY uq_sellers_email (email),
		KEY idx_sellers_status (status)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS products (
		id VARCHAR(64) PRIMARY KEY,
		seller_id VARCHAR(64) NOT NULL,
		name VARCHAR(255) NOT NULL,
		description TEXT NOT NULL,
		category VARCHAR(128) NOT NULL,
		price_cents BIGINT NOT NULL,
		stock INT NOT NULL,
		status VARCHAR(16) NOT NULL,
		version INT NOT NULL DEFAULT 0,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		KEY idx_products_seller (seller_id),
		KEY idx_products_category (category)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS orders (
		id VARCHAR(64) PRIMARY KEY,
		request_id VARCHAR(128) NOT NULL,
		buyer_id VARCHAR(64) NOT NULL,
		seller_id VARCHAR(64) NOT NULL,
		product_id VARCHAR(64) NOT NULL,
		negotiation_id VARCHAR(64) NOT NULL,
		quantity INT NOT NULL,
		unit_price_cents BIGINT NOT NULL,
		total_cents BIGINT NOT NULL,
		commission_cents BIGINT NOT NULL,
		status VARCHAR(16) NOT NULL,
		escrow_status VARCHAR(16) NOT NULL,
		version INT NOT NULL DEFAULT 0,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		UNIQUE KEY uq_orders_request (request_id),
		KEY idx_orders_buyer (buyer_id),
		KEY idx_orders_seller (seller_id)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS negotiations (
		id VARCHAR(64) PRIMARY KEY,
		product_id VARCHAR(64) NOT NULL,
		buyer_id VARCHAR(64) NOT NULL,
		seller_id VARCHAR(64) NOT NULL,
		quantity INT NOT NULL,
		list_price_cents BIGINT NOT NULL,
		offer_price_cents BIGINT NOT NULL,
		counter_price_cents BIGINT NOT NULL,
		agreed_price_cents BIGINT NOT NULL,
		status VARCHAR(16) NOT NULL,
		message TEXT NOT NULL,
		version INT NOT NULL DEFAULT 0,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		KEY idx_negotiations_buyer (buyer_id),
		KEY idx_negotiations_seller (seller_id),
		KEY idx_negotiations_status (status)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS payouts (
		id VARCHAR(64) PRIMARY KEY,
		seller_id VARCHAR(64) NOT NULL,
		amount_cents BIGINT NOT NULL,
		status VARCHAR(16) NOT NULL,
		reference VARCHAR(255) NOT NULL,
		statement_key VARCHAR(512) NOT NULL,
		note TEXT NOT NULL,
		version INT NOT NULL DEFAULT 0,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		KEY idx_payouts_seller (seller_id),
		KEY idx_payouts_status (status)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS ledger_entries (
		id VARCHAR(64) PRIMARY KEY,
		tx_id VARCHAR(64) NOT NULL,
		account VARCHAR(160) NOT NULL,
		amount_cents BIGINT NOT NULL,
		kind VARCHAR(32) NOT NULL,
		order_id VARCHAR(64) NOT NULL,
		payout_id VARCHAR(64) NOT NULL,
		created_at DATETIME(6) NOT NULL,
		KEY idx_ledger_account (account),
		KEY idx_ledger_order (order_id)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS support_threads (
		id VARCHAR(64) PRIMARY KEY,
		user_id VARCHAR(64) NOT NULL,
		subject VARCHAR(255) NOT NULL,
		concierge TINYINT(1) NOT NULL DEFAULT 0,
		status VARCHAR(16) NOT NULL,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		KEY idx_threads_user (user_id)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS support_messages (
		id VARCHAR(64) PRIMARY KEY,
		thread_id VARCHAR(64) NOT NULL,
		sender_id VARCHAR(64) NOT NULL,
		sender_role VARCHAR(16) NOT NULL,
		body TEXT NOT NULL,
		created_at DATETIME(6) NOT NULL,
		KEY idx_messages_thread (thread_id)
	) ENGINE=InnoDB`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS sellers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		store_name TEXT NOT NULL,
		status TEXT NOT NULL,
		commission_bps INTEGER NOT NULL DEFAULT 0,
		version INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		seller_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL,
		price_cents INTEGER NOT NULL,
		stock INTEGER NOT NULL,
		status TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_products_seller ON products(seller_id)`,
	`CREATE INDEX IF NOT EXISTS idx_products_category ON products(category)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		request_id TEXT NOT NULL UNIQUE,
		buyer_id TEXT NOT NULL,
		seller_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		negotiation_id TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		unit_price_cents INTEGER NOT NULL,
		total_cents INTEGER NOT NULL,
		commission_cents INTEGER NOT NULL,
		status TEXT NOT NULL,
		escrow_status TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_buyer ON orders(buyer_id)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_seller ON orders(seller_id)`,
	`CREATE TABLE IF NOT EXISTS negotiations (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL,
		buyer_id TEXT NOT NULL,
		seller_id TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		list_price_cents INTEGER NOT NULL,
		offer_price_cents INTEGER NOT NULL,
		counter_price_cents INTEGER NOT NULL,
		agreed_price_cents INTEGER NOT NULL,
		status TEXT NOT NULL,
		message TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_negotiations_buyer ON negotiations(buyer_id)`,
	`CREATE INDEX IF NOT EXISTS idx_negotiations_seller ON negotiations(seller_id)`,
	`CREATE TABLE IF NOT EXISTS payouts (
		id TEXT PRIMARY KEY,
		seller_id TEXT NOT NULL,
		amount_cents INTEGER NOT NULL,
		status TEXT NOT NULL,
		reference TEXT NOT NULL,
		statement_key TEXT NOT NULL,
		note TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_payouts_seller ON payouts(seller_id)`,
	`CREATE TABLE IF NOT EXISTS ledger_entries (
		id TEXT PRIMARY KEY,
		tx_id TEXT NOT NULL,
		account TEXT NOT NULL,
		amount_cents INTEGER NOT NULL,
		kind TEXT NOT NULL,
		order_id TEXT NOT NULL,
		payout_id TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_account ON ledger_entries(account)`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_order ON ledger_entries(order_id)`,
	`CREATE TABLE IF NOT EXISTS support_threads (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		subject TEXT NOT NULL,
		concierge INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_threads_user ON support_threads(user_id)`,
	`CREATE TABLE IF NOT EXISTS support_messages (
		id TEXT PRIMARY KEY,
		thread_id TEXT NOT NULL,
		sender_id TEXT NOT NULL,
		sender_role TEXT NOT NULL,
		body TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_thread ON support_messages(thread_id)`,
}
