package repositories

// RepositoryProvider holds all repository interfaces needed by services.
// Every storage backend (postgres, sqlite, memory) builds one of these.
type RepositoryProvider struct {
	FeeTypeRepo      FeeTypeRepositoryFacade
	FeeStructureRepo FeeStructureRepositoryFacade
	LedgerRepo       LedgerRepositoryFacade
}
