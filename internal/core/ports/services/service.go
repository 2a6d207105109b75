package services

// ServiceContainer holds instances of all the application services.
// Handlers and the admin CLI reach the ledger only through it.
type ServiceContainer struct {
	FeeType      FeeTypeSvcFacade
	FeeStructure FeeStructureSvcFacade
	Ledger       LedgerEngineSvc
	Balance      BalanceProjectorSvc
}
