package postgres

var schema = []string{
	`create table if not exists roles (
		id           text primary key,
		name         text not null unique,
		display_name text not null default '',
		is_active    boolean not null default true,
		permissions  jsonb not null default '{}'::jsonb,
		created_at   timestamptz not null default now(),
		updated_at   timestamptz not null default now()
	)`,
	`create table if not exists organizations (
		id         text primary key,
		code       text not null unique,
		name       text not null,
		type       text not null,
		is_active  boolean not null default true,
		created_at timestamptz not null default now()
	)`,
	`create table if not exists branches (
		id              text primary key,
		organization_id text not null references organizations(id),
		code            text not null,
		name            text not null default '',
		is_active       boolean not null default true,
		created_at      timestamptz not null default now(),
		unique (organization_id, code)
	)`,
	`create table if not exists users (
		id              text primary key,
		username        text not null,
		password_hash   text not null,
		full_name       text not null default '',
		email           text,
		role_id         text not null references roles(id),
		branch_code     text,
		organization_id text references organizations(id),
		is_active       boolean not null default true,
		is_locked       boolean not null default false,
		failed_logins   integer not null default 0,
		last_login      timestamptz,
		created_at      timestamptz not null default now(),
		updated_at      timestamptz not null default now()
	)`,
	`create unique index if not exists users_username_lower_idx on users (lower(username))`,
	`create table if not exists audit_logs (
		id         text primary key,
		actor_id   text not null,
		actor_name text not null default '',
		action     text not null,
		table_name text not null default '',
		record_id  text not null default '',
		old_values jsonb,
		new_values jsonb,
		ip_address text,
		user_agent text,
		created_at timestamptz not null default now()
	)`,
	`create index if not exists audit_logs_created_at_idx on audit_logs (created_at)`,
}
