package db

// PrimaryMigrations returns the schema for the shared directory database.
// Tenant business data never lives here; each tenant gets its own database
// carrying TenantMigrations.
func PrimaryMigrations() []Migration {
	return []Migration{
		{Name: "0001_tenants", SQL: `
			CREATE TABLE IF NOT EXISTS tenants (
				id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
				subdomain TEXT NOT NULL UNIQUE,
				name TEXT NOT NULL,
				status TEXT NOT NULL DEFAULT 'trial',
				settings JSONB NOT NULL DEFAULT '{}'::jsonb,
				owner_email TEXT NOT NULL DEFAULT '',
				owner_password_hash TEXT NOT NULL DEFAULT '',
				trial_ends_at TIMESTAMPTZ,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_tenants_status ON tenants (status);
		`},
		{Name: "0002_subscriptions", SQL: `
			CREATE TABLE IF NOT EXISTS subscriptions (
				id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
				tenant_id BIGINT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
				plan TEXT NOT NULL,
				amount NUMERIC(16,2) NOT NULL DEFAULT 0,
				payment_status TEXT NOT NULL DEFAULT 'pending',
				starts_at TIMESTAMPTZ NOT NULL,
				ends_at TIMESTAMPTZ NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_subscriptions_tenant ON subscriptions (tenant_id, ends_at DESC);
		`},
	}
}

// TenantMigrations returns the full per-tenant schema. The provisioner
// replays it against every tenant database, so each step must stay
// re-runnable on databases created by older builds.
func TenantMigrations() []Migration {
	return []Migration{
		{Name: "0001_accounts", SQL: `
			CREATE TABLE IF NOT EXISTS accounts (
				id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
				code TEXT NOT NULL UNIQUE,
				name TEXT NOT NULL,
				type TEXT NOT NULL,
				subtype TEXT NOT NULL DEFAULT '',
				normal_balance TEXT NOT NULL,
				parent_id BIGINT REFERENCES accounts(id),
				is_active BOOLEAN NOT NULL DEFAULT TRUE,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
		`},
		{Name: "0002_journal", SQL: `
			CREATE SEQUENCE IF NOT EXISTS journal_number_seq;
			CREATE TABLE IF NOT EXISTS journal_entries (
				id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
				number BIGINT NOT NULL UNIQUE DEFAULT nextval('journal_number_seq'),
				entry_type TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				reference TEXT NOT NULL DEFAULT '',
				reference_type TEXT NOT NULL DEFAULT '',
				total_amount NUMERIC(16,2) NOT NULL,
				status TEXT NOT NULL DEFAULT 'posted',
				entry_date TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_journal_entries_date ON journal_entries (entry_date);
			CREATE INDEX IF NOT EXISTS idx_journal_entries_ref ON journal_entries (reference_type, reference);
			CREATE TABLE IF NOT EXISTS journal_lines (
				id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
				journal_id BIGINT NOT NULL REFERENCES journal_entries(id) ON DELETE CASCADE,
				account_id BIGINT NOT NULL REFERENCES accounts(id),
				debit NUMERIC(16,2) NOT NULL DEFAULT 0,
				credit NUMERIC(16,2) NOT NULL DEFAULT 0,
				memo TEXT NOT NULL DEFAULT ''
			);
			CREATE INDEX IF NOT EXISTS idx_journal_lines_journal ON journal_lines (journal_id);
			CREATE INDEX IF NOT EXISTS idx_journal_lines_account ON journal_lines (account_id);
		`},
		{Name: "0003_financial_records", SQL: `
			CREATE TABLE IF NOT EXISTS financial_records (
				id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
				record_type TEXT NOT NULL,
				category TEXT NOT NULL,
				subcategory TEXT NOT NULL DEFAULT '',
				amount NUMERIC(16,2) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				payment_method TEXT NOT NULL DEFAULT 'cash',
				reference TEXT NOT NULL DEFAULT '',
				reference_type TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL DEFAULT 'confirmed',
				tags TEXT[] NOT NULL DEFAULT '{}',
				occurred_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE UNIQUE INDEX IF NOT EXISTS uq_financial_records_source
				ON financial_records (reference_type, reference, description)
				WHERE reference <> '';
			CREATE INDEX IF NOT EXISTS idx_financial_records_occurred ON financial_records (occurred_at);
			CREATE INDEX IF NOT EXISTS idx_financial_records_type ON financial_records (record_type, category);
		`},
		{Name: "0004_masterdata", SQL: `
			CREATE TABLE IF NOT EXISTS products (
				id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
				code TEXT NOT NULL UNIQUE,
				name TEXT NOT NULL,
				category TEXT NOT NULL DEFAULT '',
				unit TEXT NOT NULL DEFAULT 'pcs',
				price NUMERIC(16,2) NOT NULL DEFAULT 0,
				cost NUMERIC(16,2) NOT NULL DEFAULT 0,
				avg_cost NUMERIC(16,2) NOT NULL DEFAULT 0,
				last_purchase_price NUMERIC(16,2) NOT NULL DEFAULT 0,
				stock NUMERIC(14,3) NOT NULL DEFAULT 0,
				min_stock NUMERIC(14,3) NOT NULL DEFAULT 0,
				is_active BOOLEAN NOT NULL DEFAULT TRUE,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE TABLE IF NOT EXISTS customers (
				id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
				name TEXT NOT NULL,
				phone TEXT NOT NULL DEFAULT '',
				email TEXT NOT NULL DEFAULT '',
				address TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_customers_phone ON customers (phone);
			CREATE TABLE IF NOT EXISTS suppliers (
				id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
				name TEXT NOT NULL,
				contact TEXT NOT NULL DEFAULT '',
				phone TEXT NOT NULL DEFAULT '',
				address TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
		`},
		{Name: "0005_sales", SQL: `
			CREATE TABLE IF NOT EXISTS sales (
				id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
				number TEXT NOT NULL UNIQUE,
				customer_id BIGINT REFERENCES customers(id),
				status TEXT NOT NULL DEFAULT 'completed',
				payment_method TEXT NOT NULL DEFAULT 'cash',
				subtotal NUMERIC(16,2) NOT NULL DEFAULT 0,
				discount NUMERIC(16,2) NOT NULL DEFAULT 0,
				total NUMERIC(16,2) NOT NULL DEFAULT 0,
				paid_amount NUMERIC(16,2) NOT NULL DEFAULT 0,
				change_amount NUMERIC(16,2) NOT NULL DEFAULT 0,
				cashier TEXT NOT NULL DEFAULT '',
				sold_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_sales_sold_at ON sales (sold_at);
			CREATE TABLE IF NOT EXISTS sale_items (
				id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
				sale_id BIGINT NOT NULL REFERENCES sales(id) ON DELETE CASCADE,
				product_id BIGINT NOT NULL REFERENCES products(id),
				qty NUMERIC(14,3) NOT NULL,
				unit_price NUMERIC(16,2) NOT NULL,
				unit_cost NUMERIC(16,2) NOT NULL DEFAULT 0,
				line_total NUMERIC(16,2) NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_sale_items_sale ON sale_items (sale_id);
		`},
		{Name: "0006_service_tickets", SQL: `
			CREATE TABLE IF NOT EXISTS service_tickets (
				id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
				number TEXT NOT NULL UNIQUE,
				customer_id BIGINT REFERENCES customers(id),
				device TEXT NOT NULL DEFAULT '',
				complaint TEXT NOT NULL DEFAULT '',
				diagnosis TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL DEFAULT 'open',
				technician TEXT NOT NULL DEFAULT '',
				labor_charge NUMERIC(16,2) NOT NULL DEFAULT 0,
				payment_method TEXT NOT NULL DEFAULT 'cash',
				completed_at TIMESTAMPTZ,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_service_tickets_status ON service_tickets (status);
			CREATE TABLE IF NOT EXISTS service_ticket_parts (
				id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
				ticket_id BIGINT NOT NULL REFERENCES service_tickets(id) ON DELETE CASCADE,
				product_id BIGINT NOT NULL REFERENCES products(id),
				qty NUMERIC(14,3) NOT NULL,
				unit_price NUMERIC(16,2) NOT NULL,
				unit_cost NUMERIC(16,2) NOT NULL DEFAULT 0
			);
			CREATE INDEX IF NOT EXISTS idx_service_ticket_parts_ticket ON service_ticket_parts (ticket_id);
		`},
		{Name: "0007_purchases", SQL: `
			CREATE TABLE IF NOT EXISTS purchases (
				id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
				number TEXT NOT NULL UNIQUE,
				supplier_id BIGINT REFERENCES suppliers(id),
				status TEXT NOT NULL DEFAULT 'received',
				payment_method TEXT NOT NULL DEFAULT 'cash',
				total NUMERIC(16,2) NOT NULL DEFAULT 0,
				note TEXT NOT NULL DEFAULT '',
				received_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_purchases_received_at ON purchases (received_at);
			CREATE TABLE IF NOT EXISTS purchase_items (
				id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
				purchase_id BIGINT NOT NULL REFERENCES purchases(id) ON DELETE CASCADE,
				product_id BIGINT NOT NULL REFERENCES products(id),
				qty NUMERIC(14,3) NOT NULL,
				unit_cost NUMERIC(16,2) NOT NULL,
				line_total NUMERIC(16,2) NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_purchase_items_purchase ON purchase_items (purchase_id);
		`},
		{Name: "0008_stock_movements", SQL: `
			CREATE TABLE IF NOT EXISTS stock_movements (
				id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
				product_id BIGINT NOT NULL REFERENCES products(id),
				movement_type TEXT NOT NULL,
				qty NUMERIC(14,3) NOT NULL,
				unit_cost NUMERIC(16,2) NOT NULL DEFAULT 0,
				balance_qty NUMERIC(14,3) NOT NULL DEFAULT 0,
				reference TEXT NOT NULL DEFAULT '',
				reference_type TEXT NOT NULL DEFAULT '',
				note TEXT NOT NULL DEFAULT '',
				moved_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_stock_movements_product ON stock_movements (product_id, moved_at DESC);
		`},
		{Name: "0009_hr", SQL: `
			CREATE TABLE IF NOT EXISTS employees (
				id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
				name TEXT NOT NULL,
				position TEXT NOT NULL DEFAULT '',
				phone TEXT NOT NULL DEFAULT '',
				base_salary NUMERIC(16,2) NOT NULL DEFAULT 0,
				is_active BOOLEAN NOT NULL DEFAULT TRUE,
				joined_at DATE,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE TABLE IF NOT EXISTS attendance_records (
				id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
				employee_id BIGINT NOT NULL REFERENCES employees(id) ON DELETE CASCADE,
				work_date DATE NOT NULL,
				status TEXT NOT NULL DEFAULT 'present',
				check_in TIMESTAMPTZ,
				check_out TIMESTAMPTZ,
				note TEXT NOT NULL DEFAULT '',
				UNIQUE (employee_id, work_date)
			);
			CREATE TABLE IF NOT EXISTS payroll_records (
				id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
				employee_id BIGINT NOT NULL REFERENCES employees(id) ON DELETE CASCADE,
				period TEXT NOT NULL,
				base_salary NUMERIC(16,2) NOT NULL DEFAULT 0,
				allowance NUMERIC(16,2) NOT NULL DEFAULT 0,
				deduction NUMERIC(16,2) NOT NULL DEFAULT 0,
				net_pay NUMERIC(16,2) NOT NULL DEFAULT 0,
				status TEXT NOT NULL DEFAULT 'draft',
				payment_method TEXT NOT NULL DEFAULT 'bank_transfer',
				paid_at TIMESTAMPTZ,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				UNIQUE (employee_id, period)
			);
		`},
		{Name: "0010_audit_logs", SQL: `
			CREATE TABLE IF NOT EXISTS audit_logs (
				id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
				actor TEXT NOT NULL DEFAULT '',
				action TEXT NOT NULL,
				entity TEXT NOT NULL,
				entity_id TEXT NOT NULL DEFAULT '',
				meta JSONB NOT NULL DEFAULT '{}'::jsonb,
				occurred_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_audit_logs_entity ON audit_logs (entity, entity_id);
		`},
	}
}
