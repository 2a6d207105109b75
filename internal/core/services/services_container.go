package services

import (
	portsrepo "github.com/SscSPs/student_ledger/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/student_ledger/internal/core/ports/services"
	"github.com/SscSPs/student_ledger/internal/platform/config"
)

// NewServiceContainer creates a new service container with properly initialized dependencies.
// publisher may be nil, in which case no post-commit events are emitted.
func NewServiceContainer(cfg *config.Config, repos portsrepo.RepositoryProvider, publisher portssvc.LedgerEventPublisher) *portssvc.ServiceContainer {
	ledgerOpts := []LedgerServiceOption{WithTransactionPrefix(cfg.LedgerTxnPrefix)}
	if publisher != nil {
		ledgerOpts = append(ledgerOpts, WithEventPublisher(publisher))
	}

	return &portssvc.ServiceContainer{
		FeeType:      NewFeeTypeService(repos.FeeTypeRepo),
		FeeStructure: NewFeeStructureService(repos.FeeStructureRepo, repos.FeeTypeRepo),
		Ledger:       NewLedgerService(repos.LedgerRepo, ledgerOpts...),
		Balance:      NewBalanceProjector(repos.LedgerRepo),
	}
}
