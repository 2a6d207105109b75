package handlers

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SscSPs/student_ledger/internal/core/domain"
	portssvc "github.com/SscSPs/student_ledger/internal/core/ports/services"
	"github.com/SscSPs/student_ledger/internal/dto"
	"github.com/SscSPs/student_ledger/internal/middleware"
	"github.com/SscSPs/student_ledger/internal/utils"
)

// ledgerHandler handles HTTP requests against student ledgers.
type ledgerHandler struct {
	engine    portssvc.LedgerEngineSvc
	projector portssvc.BalanceProjectorSvc
	currency  string
	clock     func() time.Time
}

func newLedgerHandler(engine portssvc.LedgerEngineSvc, projector portssvc.BalanceProjectorSvc, currency string) *ledgerHandler {
	return &ledgerHandler{
		engine:    engine,
		projector: projector,
		currency:  currency,
		clock:     time.Now,
	}
}

// RegisterLedgerRoutes registers the ledger engine and balance projector routes.
// Reversal and period lock are restricted to bursars.
func RegisterLedgerRoutes(rg *gin.RouterGroup, engine portssvc.LedgerEngineSvc, projector portssvc.BalanceProjectorSvc, currency string) {
	h := newLedgerHandler(engine, projector, currency)
	bursarOnly := middleware.RequireRole(middleware.RoleBursar)

	ledger := rg.Group("/ledger")
	{
		ledger.POST("/transactions", h.postEntry)
		ledger.GET("/transactions", h.lookupTransactions)
		ledger.GET("/transactions/:transactionID", h.getTransaction)
		ledger.POST("/transactions/:transactionID/reverse", bursarOnly, h.reverseTransaction)

		student := ledger.Group("/students/:studentID/years/:academicYearID")
		student.GET("/balance", h.getBalance)
		student.GET("/statement", h.getStatement)
		student.GET("/reconcile", h.reconcile)
		student.GET("/summary", h.getSummary)
		student.GET("/transactions", h.listTransactions)
		student.POST("/lock", bursarOnly, h.lockLedger)
	}
}

// restrictedEntryTypes may only be posted by bursars; they do not originate from an invoice or payment.
var restrictedEntryTypes = []domain.EntryType{domain.EntryAdjustment, domain.EntryOpeningBalance}

// postEntry godoc
// @Summary Post a ledger entry
// @Description Appends an entry to the student's ledger and returns it with its frozen running balance.
// @Description Supplying idempotencyKey makes retries safe: a replay returns the entry posted the first time.
// @Tags ledger
// @Accept  json
// @Produce  json
// @Param   entry body dto.PostLedgerEntryRequest true "Ledger entry"
// @Success 201 {object} dto.LedgerTransactionResponse
// @Failure 400 {object} map[string]string "Invalid input format or validation error"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Insufficient permissions"
// @Failure 409 {object} map[string]string "Idempotency key reused for a different entry"
// @Failure 503 {object} map[string]string "Ledger busy, retry"
// @Failure 500 {object} map[string]string "Failed to post ledger entry"
// @Security BearerAuth
// @Router /ledger/transactions [post]
func (h *ledgerHandler) postEntry(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.PostLedgerEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for PostLedgerEntry", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}
	userID, ok := requireUserID(c, logger)
	if !ok {
		return
	}

	entry, err := req.ToPostEntry(userID, h.clock())
	if err != nil {
		respondError(c, logger, err, "Failed to post ledger entry")
		return
	}
	if slices.Contains(restrictedEntryTypes, entry.EntryType) && !slices.Contains(middleware.GetRolesFromContext(c), middleware.RoleBursar) {
		logger.Warn("Restricted entry type without bursar role", slog.String("entry_type", string(entry.EntryType)))
		c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
		return
	}

	logger = logger.With(slog.String("student_id", entry.StudentID), slog.String("academic_year_id", entry.AcademicYearID))
	txn, err := h.engine.Post(c.Request.Context(), entry)
	if err != nil {
		respondError(c, logger, err, "Failed to post ledger entry")
		return
	}
	c.JSON(http.StatusCreated, dto.ToLedgerTransactionResponse(txn))
}

// reverseTransaction godoc
// @Summary Reverse a ledger entry
// @Description Appends an entry with the opposite direction and the same amount, and links both entries.
// @Description Reversal entries themselves cannot be reversed.
// @Tags ledger
// @Accept  json
// @Produce  json
// @Param   transactionID path int true "Transaction ID"
// @Param   reversal body dto.ReverseTransactionRequest true "Reason"
// @Success 201 {object} dto.LedgerTransactionResponse
// @Failure 400 {object} map[string]string "Invalid input format or validation error"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Insufficient permissions"
// @Failure 404 {object} map[string]string "Transaction not found"
// @Failure 409 {object} map[string]string "Already reversed or is a reversal"
// @Failure 503 {object} map[string]string "Ledger busy, retry"
// @Failure 500 {object} map[string]string "Failed to reverse ledger entry"
// @Security BearerAuth
// @Router /ledger/transactions/{transactionID}/reverse [post]
func (h *ledgerHandler) reverseTransaction(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	transactionID, ok := parseIDParam(c, logger, "transactionID")
	if !ok {
		return
	}
	var req dto.ReverseTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for ReverseTransaction", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}
	userID, ok := requireUserID(c, logger)
	if !ok {
		return
	}

	reversal, err := h.engine.Reverse(c.Request.Context(), transactionID, req.Reason, userID)
	if err != nil {
		respondError(c, logger.With(slog.Int64("transaction_id", transactionID)), err, "Failed to reverse ledger entry")
		return
	}
	c.JSON(http.StatusCreated, dto.ToLedgerTransactionResponse(reversal))
}

// lockLedger godoc
// @Summary Lock a ledger up to an entry
// @Description Marks every entry up to and including asOfTransactionID as locked. Relocking is a no-op.
// @Tags ledger
// @Accept  json
// @Produce  json
// @Param   studentID path string true "Student ID"
// @Param   academicYearID path string true "Academic year"
// @Param   lock body dto.LockLedgerRequest true "Lock boundary"
// @Success 200 {object} dto.LockLedgerResponse
// @Failure 400 {object} map[string]string "Invalid input format or validation error"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Insufficient permissions"
// @Failure 404 {object} map[string]string "Transaction not found in this ledger"
// @Failure 503 {object} map[string]string "Ledger busy, retry"
// @Failure 500 {object} map[string]string "Failed to lock ledger"
// @Security BearerAuth
// @Router /ledger/students/{studentID}/years/{academicYearID}/lock [post]
func (h *ledgerHandler) lockLedger(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	key := ledgerKeyParam(c)
	var req dto.LockLedgerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for LockLedger", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}
	userID, ok := requireUserID(c, logger)
	if !ok {
		return
	}

	locked, err := h.engine.Lock(c.Request.Context(), key.StudentID, key.AcademicYearID, req.AsOfTransactionID, userID)
	if err != nil {
		respondError(c, logger, err, "Failed to lock ledger")
		return
	}
	c.JSON(http.StatusOK, dto.LockLedgerResponse{
		StudentID:         key.StudentID,
		AcademicYearID:    key.AcademicYearID,
		AsOfTransactionID: req.AsOfTransactionID,
		LockedCount:       locked,
	})
}

// getTransaction godoc
// @Summary Get a ledger entry
// @Tags ledger
// @Produce  json
// @Param   transactionID path int true "Transaction ID"
// @Success 200 {object} dto.LedgerTransactionResponse
// @Failure 400 {object} map[string]string "Invalid transaction ID"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Transaction not found"
// @Failure 500 {object} map[string]string "Failed to retrieve transaction"
// @Security BearerAuth
// @Router /ledger/transactions/{transactionID} [get]
func (h *ledgerHandler) getTransaction(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	transactionID, ok := parseIDParam(c, logger, "transactionID")
	if !ok {
		return
	}
	txn, err := h.projector.GetTransaction(c.Request.Context(), transactionID)
	if err != nil {
		respondError(c, logger, err, "Failed to retrieve transaction")
		return
	}
	c.JSON(http.StatusOK, dto.ToLedgerTransactionResponse(txn))
}

// lookupTransactions godoc
// @Summary Find ledger entries
// @Description Looks entries up by transaction number, by idempotency key, or by business reference.
// @Description Callers that timed out on a post use the idempotency key to check whether it committed.
// @Tags ledger
// @Produce  json
// @Param   transactionNumber query string false "Transaction number"
// @Param   idempotencyKey query string false "Idempotency key supplied on post"
// @Param   referenceType query string false "invoice, payment, adhoc_fee or adjustment"
// @Param   referenceID query string false "Reference ID"
// @Success 200 {array} dto.LedgerTransactionResponse
// @Failure 400 {object} map[string]string "Invalid query parameters"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Transaction not found"
// @Failure 500 {object} map[string]string "Failed to look up transactions"
// @Security BearerAuth
// @Router /ledger/transactions [get]
func (h *ledgerHandler) lookupTransactions(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var params dto.TransactionLookupParams
	if err := c.ShouldBindQuery(&params); err != nil {
		logger.Warn("Failed to bind query parameters for LookupTransactions", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters: " + err.Error()})
		return
	}

	ctx := c.Request.Context()
	var (
		txns []domain.LedgerTransaction
		err  error
	)
	switch {
	case params.TransactionNumber != "":
		var txn *domain.LedgerTransaction
		if txn, err = h.projector.GetTransactionByNumber(ctx, params.TransactionNumber); err == nil {
			txns = []domain.LedgerTransaction{*txn}
		}
	case params.IdempotencyKey != "":
		var txn *domain.LedgerTransaction
		if txn, err = h.projector.GetTransactionByIdempotencyKey(ctx, params.IdempotencyKey); err == nil {
			txns = []domain.LedgerTransaction{*txn}
		}
	case params.ReferenceType != "" && params.ReferenceID != "":
		txns, err = h.projector.FindByReference(ctx, domain.ReferenceType(params.ReferenceType), params.ReferenceID)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "one of transactionNumber, idempotencyKey or referenceType with referenceID is required"})
		return
	}
	if err != nil {
		respondError(c, logger, err, "Failed to look up transactions")
		return
	}
	c.JSON(http.StatusOK, dto.ToLedgerTransactionResponses(txns))
}

// getBalance godoc
// @Summary Current balance of a ledger
// @Description Frozen balance of the latest entry; zero for an empty ledger. Positive means the student owes.
// @Tags ledger
// @Produce  json
// @Param   studentID path string true "Student ID"
// @Param   academicYearID path string true "Academic year"
// @Success 200 {object} dto.BalanceResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Failed to get balance"
// @Security BearerAuth
// @Router /ledger/students/{studentID}/years/{academicYearID}/balance [get]
func (h *ledgerHandler) getBalance(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	key := ledgerKeyParam(c)

	balance, err := h.projector.CurrentBalance(c.Request.Context(), key.StudentID, key.AcademicYearID)
	if err != nil {
		respondError(c, logger, err, "Failed to get balance")
		return
	}
	c.JSON(http.StatusOK, dto.BalanceResponse{
		StudentID:      key.StudentID,
		AcademicYearID: key.AcademicYearID,
		Balance:        balance,
		Currency:       h.currency,
		Formatted:      utils.FormatWithCurrency(balance, h.currency),
	})
}

// getStatement godoc
// @Summary Statement of a ledger for a period
// @Description Entries dated within [from, to], ordered by ID, each with its frozen balance.
// @Tags ledger
// @Produce  json
// @Param   studentID path string true "Student ID"
// @Param   academicYearID path string true "Academic year"
// @Param   from query string true "First date, YYYY-MM-DD"
// @Param   to query string true "Last date, YYYY-MM-DD"
// @Success 200 {object} dto.StatementResponse
// @Failure 400 {object} map[string]string "Invalid query parameters"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Failed to build statement"
// @Security BearerAuth
// @Router /ledger/students/{studentID}/years/{academicYearID}/statement [get]
func (h *ledgerHandler) getStatement(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	key := ledgerKeyParam(c)
	var params dto.StatementParams
	if err := c.ShouldBindQuery(&params); err != nil {
		logger.Warn("Failed to bind query parameters for Statement", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters: " + err.Error()})
		return
	}
	from, errFrom := time.Parse(dto.DateLayout, params.From)
	to, errTo := time.Parse(dto.DateLayout, params.To)
	if errFrom != nil || errTo != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from and to must be YYYY-MM-DD"})
		return
	}

	txns, err := h.projector.StatementFor(c.Request.Context(), key.StudentID, key.AcademicYearID, from, to)
	if err != nil {
		respondError(c, logger, err, "Failed to build statement")
		return
	}
	c.JSON(http.StatusOK, dto.ToStatementResponse(key, from, to, txns))
}

// reconcile godoc
// @Summary Reconcile a ledger
// @Description Re-folds every entry and reports the first stored balance that diverges. Never repairs.
// @Tags ledger
// @Produce  json
// @Param   studentID path string true "Student ID"
// @Param   academicYearID path string true "Academic year"
// @Success 200 {object} dto.ReconcileResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Failed to reconcile ledger"
// @Security BearerAuth
// @Router /ledger/students/{studentID}/years/{academicYearID}/reconcile [get]
func (h *ledgerHandler) reconcile(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	key := ledgerKeyParam(c)

	result, err := h.projector.Reconcile(c.Request.Context(), key.StudentID, key.AcademicYearID)
	if err != nil {
		respondError(c, logger, err, "Failed to reconcile ledger")
		return
	}
	c.JSON(http.StatusOK, dto.ReconcileResponse{
		StudentID:       key.StudentID,
		AcademicYearID:  key.AcademicYearID,
		OK:              result.OK,
		FirstMismatchID: result.FirstMismatchID,
		Expected:        result.Expected,
		Stored:          result.Stored,
		Checked:         result.Checked,
	})
}

// getSummary godoc
// @Summary Totals of a ledger
// @Tags ledger
// @Produce  json
// @Param   studentID path string true "Student ID"
// @Param   academicYearID path string true "Academic year"
// @Success 200 {object} domain.LedgerSummary
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Failed to summarize ledger"
// @Security BearerAuth
// @Router /ledger/students/{studentID}/years/{academicYearID}/summary [get]
func (h *ledgerHandler) getSummary(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	key := ledgerKeyParam(c)

	summary, err := h.projector.Summary(c.Request.Context(), key.StudentID, key.AcademicYearID)
	if err != nil {
		respondError(c, logger, err, "Failed to summarize ledger")
		return
	}
	c.JSON(http.StatusOK, summary)
}

// listTransactions godoc
// @Summary Page through a ledger
// @Description Entries ordered by ID. Pass nextToken from the previous page to continue.
// @Tags ledger
// @Produce  json
// @Param   studentID path string true "Student ID"
// @Param   academicYearID path string true "Academic year"
// @Param   limit query int false "Page size (default 50, max 500)"
// @Param   nextToken query string false "Token from the previous page"
// @Success 200 {object} dto.ListLedgerTransactionsResponse
// @Failure 400 {object} map[string]string "Invalid query parameters"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Failed to list transactions"
// @Security BearerAuth
// @Router /ledger/students/{studentID}/years/{academicYearID}/transactions [get]
func (h *ledgerHandler) listTransactions(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	key := ledgerKeyParam(c)
	var params dto.ListLedgerTransactionsParams
	if err := c.ShouldBindQuery(&params); err != nil {
		logger.Warn("Failed to bind query parameters for ListTransactions", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters: " + err.Error()})
		return
	}

	resp, err := h.projector.ListTransactions(c.Request.Context(), key.StudentID, key.AcademicYearID, params)
	if err != nil {
		respondError(c, logger, err, "Failed to list transactions")
		return
	}
	c.JSON(http.StatusOK, resp)
}

func ledgerKeyParam(c *gin.Context) domain.LedgerKey {
	return domain.LedgerKey{StudentID: c.Param("studentID"), AcademicYearID: c.Param("academicYearID")}
}
