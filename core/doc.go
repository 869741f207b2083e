// Package core contains the installation token domain: the persisted token
// record, expiry classification, the error taxonomy, configuration, and the
// lifecycle manager that keeps a valid installation token available.
// Adapters (stores, exchangers, transports) depend on this package; core must
// not depend on them.
package core
