// Package store provides persistent storage for coven-connect using SQLite.
//
// # Architecture
//
// The store package uses an interface-driven architecture with three narrow
// interfaces composed into Store:
//
//   - DirectoryStore: company lookup by public key, customer find and create
//   - ConversationStore: active conversation lookup, atomic creation, hydrated reads
//   - AdminStore: company provisioning, agent availability, conversation by ID
//
// SQLiteStore implements all of them in a single struct. MockStore is an
// in-memory implementation with the same atomicity guarantees, plus hooks
// for injecting failures in tests.
//
// # Data Models
//
//   - Company: tenant addressed by an opaque public key, owning an ordered agent roster
//   - Agent: human operator with an availability flag
//   - Customer: end user identified by device ID, scoped to one company
//   - Conversation: session between one customer and one agent
//   - Message: immutable utterance authored by the agent or the customer
//
// # Concurrency
//
// Uniqueness is enforced by the database, not by read-then-write in callers:
//
//   - customers(device_id, company_id) is UNIQUE and CreateCustomer is an
//     insert-or-get, so concurrent first contacts converge on one customer
//   - a partial unique index allows one conversation with archived = 0 per
//     (customer_id, company_id); the loser gets ErrDuplicateConversation
//   - CreateConversation re-checks agent availability and writes the
//     conversation with its messages in one immediate transaction
//
// # SQLite Configuration
//
// Pragmas are passed in the connection string so every pooled connection
// gets them:
//
//	busy_timeout(5000), foreign_keys(1), journal_mode(WAL), _txlock=immediate
//
// Use NewSQLiteStore(":memory:") for integration tests with real SQLite.
//
// # Seeding
//
// LoadSeedFile and ApplySeed read companies and rosters from a TOML file.
// Applying a seed twice is a no-op.
package store
