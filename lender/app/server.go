package app

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/egaotan/solana-lending/backend"
	"github.com/egaotan/solana-lending/env"
	"github.com/egaotan/solana-lending/lending"
	"github.com/egaotan/solana-lending/store"
	"github.com/egaotan/solana-lending/tokenlending"
)

const (
	DefaultOperationLimit = 20
)

type Operations interface {
	Deposit(ctx context.Context, req *lending.DepositRequest) (*lending.Result, error)
	Withdraw(ctx context.Context, req *lending.WithdrawRequest) (*lending.Result, error)
	Borrow(ctx context.Context, req *lending.BorrowRequest) (*lending.Result, error)
	Repay(ctx context.Context, req *lending.RepayRequest) (*lending.Result, error)
	Reject(kind lending.Kind, err error) (*lending.Result, error)
}

type Journal interface {
	GetOperation(id string) (*store.Operation, error)
	GetOperations(wallet string, limit int) ([]*store.Operation, error)
}

type Server struct {
	log      *logrus.Entry
	ops      Operations
	resolver Resolver
	wallet   lending.Wallet
	journal  Journal
	env      *env.Env
	metrics  *Metrics
}

func NewServer(ops Operations, resolver Resolver, wallet lending.Wallet, journal Journal, e *env.Env, metrics *Metrics) *Server {
	return &Server{
		log:      logrus.StandardLogger().WithField("service", "rpc"),
		ops:      ops,
		resolver: resolver,
		wallet:   wallet,
		journal:  journal,
		env:      e,
		metrics:  metrics,
	}
}

func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	g := router.Group("/api")
	g.POST("/deposit", s.deposit)
	g.POST("/withdraw", s.withdraw)
	g.POST("/borrow", s.borrow)
	g.POST("/repay", s.repay)
	g.GET("/operations", s.getOperations)
	g.GET("/operations/:id", s.getOperation)
	g.GET("/tokens", s.getTokens)
	g.GET("/reserves/:key", s.getReserve)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{})))
	return router
}

type ErrorResponse struct {
	Error  string          `json:"error"`
	Result *lending.Result `json:"result,omitempty"`
}

type DepositBody struct {
	Source  string `json:"source" binding:"required"`
	Reserve string `json:"reserve" binding:"required"`
	Amount  string `json:"amount" binding:"required"`
}

type WithdrawBody struct {
	Source  string `json:"source" binding:"required"`
	Reserve string `json:"reserve" binding:"required"`
	Amount  string `json:"amount" binding:"required"`
}

type BorrowBody struct {
	Source         string `json:"source" binding:"required"`
	DepositReserve string `json:"deposit_reserve" binding:"required"`
	BorrowReserve  string `json:"borrow_reserve" binding:"required"`
	Amount         string `json:"amount" binding:"required"`
	AmountType     string `json:"amount_type"`
	Obligation     string `json:"obligation"`
	Receipt        string `json:"receipt"`
}

type RepayBody struct {
	Source          string `json:"source" binding:"required"`
	Amount          string `json:"amount" binding:"required"`
	Obligation      string `json:"obligation" binding:"required"`
	Receipt         string `json:"receipt" binding:"required"`
	RepayReserve    string `json:"repay_reserve" binding:"required"`
	WithdrawReserve string `json:"withdraw_reserve" binding:"required"`
}

type badRequest struct {
	err error
}

func (e *badRequest) Error() string {
	return e.err.Error()
}

func invalid(err error) error {
	return &badRequest{err: err}
}

func parseKey(name, value string) (solana.PublicKey, error) {
	key, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		return solana.PublicKey{}, invalid(errors.Wrapf(err, "%s is not a valid address", name))
	}
	return key, nil
}

func parseAmount(value string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, invalid(errors.Wrap(err, "amount is not a valid decimal"))
	}
	if amount.IsNegative() {
		return decimal.Decimal{}, lending.ErrNegativeAmount
	}
	return amount, nil
}

// lamports converts a human amount with the decimals of one side of a reserve.
func (s *Server) lamports(ctx context.Context, value string, reserve solana.PublicKey, asset Asset) (uint64, error) {
	amount, err := parseAmount(value)
	if err != nil {
		return 0, err
	}
	decimals, err := s.resolver.Decimals(ctx, reserve, asset)
	if err != nil {
		return 0, err
	}
	return lending.ToLamports(amount, decimals)
}

func statusOf(err error) int {
	var bad *badRequest
	var phaseErr *lending.PhaseError
	switch {
	case errors.As(err, &bad),
		errors.Is(err, lending.ErrNegativeAmount),
		errors.Is(err, lending.ErrAmountOverflow),
		errors.Is(err, lending.ErrUnknownAmountType),
		errors.Is(err, lending.ErrSourceMintMismatch):
		return http.StatusBadRequest
	case errors.Is(err, lending.ErrWalletNotConnected),
		errors.Is(err, backend.ErrNoPlayer):
		return http.StatusServiceUnavailable
	case errors.Is(err, lending.ErrMarketMissing),
		errors.Is(err, lending.ErrPriceVenueMissing),
		errors.Is(err, tokenlending.ErrAccountMissing),
		errors.Is(err, store.ErrOperationNotFound):
		return http.StatusNotFound
	case errors.As(err, &phaseErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, result *lending.Result, err error) {
	s.log.WithField("path", c.FullPath()).WithError(err).Warn("request failed")
	c.JSON(statusOf(err), &ErrorResponse{Error: err.Error(), Result: result})
}

// run binds the body and requires a connected wallet before prepare builds and submits the
// operation. Every failure goes through the service so it is notified and recorded.
func (s *Server) run(c *gin.Context, kind lending.Kind, body interface{}, prepare func(ctx context.Context) (*lending.Result, error)) {
	var result *lending.Result
	err := c.ShouldBindJSON(body)
	switch {
	case err != nil:
		result, err = s.ops.Reject(kind, invalid(err))
	case !s.wallet.Connected():
		result, err = s.ops.Reject(kind, lending.ErrWalletNotConnected)
	default:
		result, err = prepare(c.Request.Context())
	}
	s.respond(c, result, err)
}

func (s *Server) respond(c *gin.Context, result *lending.Result, err error) {
	if err != nil {
		s.fail(c, result, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) deposit(c *gin.Context) {
	var body DepositBody
	s.run(c, lending.KindDeposit, &body, func(ctx context.Context) (*lending.Result, error) {
		req, err := s.depositRequest(ctx, &body)
		if err != nil {
			return s.ops.Reject(lending.KindDeposit, err)
		}
		return s.ops.Deposit(ctx, req)
	})
}

func (s *Server) depositRequest(ctx context.Context, body *DepositBody) (*lending.DepositRequest, error) {
	source, err := parseKey("source", body.Source)
	if err != nil {
		return nil, err
	}
	reserve, err := parseKey("reserve", body.Reserve)
	if err != nil {
		return nil, err
	}
	amount, err := s.lamports(ctx, body.Amount, reserve, Liquidity)
	if err != nil {
		return nil, err
	}
	holding, err := s.resolver.Holding(ctx, s.wallet.Player(), source)
	if err != nil {
		return nil, err
	}
	return &lending.DepositRequest{Source: holding, Amount: amount, Reserve: reserve}, nil
}

func (s *Server) withdraw(c *gin.Context) {
	var body WithdrawBody
	s.run(c, lending.KindWithdraw, &body, func(ctx context.Context) (*lending.Result, error) {
		req, err := s.withdrawRequest(ctx, &body)
		if err != nil {
			return s.ops.Reject(lending.KindWithdraw, err)
		}
		return s.ops.Withdraw(ctx, req)
	})
}

func (s *Server) withdrawRequest(ctx context.Context, body *WithdrawBody) (*lending.WithdrawRequest, error) {
	source, err := parseKey("source", body.Source)
	if err != nil {
		return nil, err
	}
	reserve, err := parseKey("reserve", body.Reserve)
	if err != nil {
		return nil, err
	}
	amount, err := s.lamports(ctx, body.Amount, reserve, Collateral)
	if err != nil {
		return nil, err
	}
	holding, err := s.resolver.Holding(ctx, s.wallet.Player(), source)
	if err != nil {
		return nil, err
	}
	return &lending.WithdrawRequest{Source: holding, Amount: amount, Reserve: reserve}, nil
}

func (s *Server) borrow(c *gin.Context) {
	var body BorrowBody
	s.run(c, lending.KindBorrow, &body, func(ctx context.Context) (*lending.Result, error) {
		req, err := s.borrowRequest(ctx, &body)
		if err != nil {
			return s.ops.Reject(lending.KindBorrow, err)
		}
		return s.ops.Borrow(ctx, req)
	})
}

func parseAmountType(value string) (tokenlending.BorrowAmountType, error) {
	switch value {
	case "", "liquidity":
		return tokenlending.LiquidityBorrowAmount, nil
	case "collateral":
		return tokenlending.CollateralDepositAmount, nil
	default:
		return 0, invalid(errors.Wrapf(lending.ErrUnknownAmountType, "%q", value))
	}
}

func (s *Server) borrowRequest(ctx context.Context, body *BorrowBody) (*lending.BorrowRequest, error) {
	source, err := parseKey("source", body.Source)
	if err != nil {
		return nil, err
	}
	depositReserve, err := parseKey("deposit_reserve", body.DepositReserve)
	if err != nil {
		return nil, err
	}
	borrowReserve, err := parseKey("borrow_reserve", body.BorrowReserve)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(body.Amount)
	if err != nil {
		return nil, err
	}
	amountType, err := parseAmountType(body.AmountType)
	if err != nil {
		return nil, err
	}
	var choice lending.ObligationChoice = lending.NewObligation{}
	if body.Obligation != "" {
		obligation, err := parseKey("obligation", body.Obligation)
		if err != nil {
			return nil, err
		}
		receipt, err := parseKey("receipt", body.Receipt)
		if err != nil {
			return nil, err
		}
		choice = lending.ExistingObligation{Obligation: obligation, Receipt: receipt}
	}
	holding, err := s.resolver.Holding(ctx, s.wallet.Player(), source)
	if err != nil {
		return nil, err
	}
	return &lending.BorrowRequest{
		Source:         holding,
		DepositReserve: depositReserve,
		BorrowReserve:  borrowReserve,
		Amount:         amount,
		AmountType:     amountType,
		Obligation:     choice,
	}, nil
}

func (s *Server) repay(c *gin.Context) {
	var body RepayBody
	s.run(c, lending.KindRepay, &body, func(ctx context.Context) (*lending.Result, error) {
		req, err := s.repayRequest(ctx, &body)
		if err != nil {
			return s.ops.Reject(lending.KindRepay, err)
		}
		return s.ops.Repay(ctx, req)
	})
}

func (s *Server) repayRequest(ctx context.Context, body *RepayBody) (*lending.RepayRequest, error) {
	keys := make(map[string]solana.PublicKey)
	for name, value := range map[string]string{
		"source":           body.Source,
		"obligation":       body.Obligation,
		"receipt":          body.Receipt,
		"repay_reserve":    body.RepayReserve,
		"withdraw_reserve": body.WithdrawReserve,
	} {
		key, err := parseKey(name, value)
		if err != nil {
			return nil, err
		}
		keys[name] = key
	}
	amount, err := s.lamports(ctx, body.Amount, keys["repay_reserve"], Liquidity)
	if err != nil {
		return nil, err
	}
	wallet := s.wallet.Player()
	source, err := s.resolver.Holding(ctx, wallet, keys["source"])
	if err != nil {
		return nil, err
	}
	receipt, err := s.resolver.Holding(ctx, wallet, keys["receipt"])
	if err != nil {
		return nil, err
	}
	return &lending.RepayRequest{
		Source:          source,
		Amount:          amount,
		Obligation:      keys["obligation"],
		Receipt:         receipt,
		RepayReserve:    keys["repay_reserve"],
		WithdrawReserve: keys["withdraw_reserve"],
	}, nil
}

type OperationInfo struct {
	Id         string   `json:"id"`
	Kind       string   `json:"kind"`
	Phase      string   `json:"phase"`
	Wallet     string   `json:"wallet"`
	Status     string   `json:"status"`
	Error      string   `json:"error,omitempty"`
	Signature  string   `json:"signature"`
	Signatures []string `json:"signatures"`
	CreatedAt  string   `json:"created_at"`
}

func buildOperation(op *store.Operation) *OperationInfo {
	info := &OperationInfo{
		Id:         op.Id,
		Kind:       op.Kind,
		Phase:      op.Phase,
		Wallet:     op.Wallet,
		Status:     op.Status,
		Error:      op.Error,
		Signature:  op.Signature(),
		Signatures: make([]string, 0, len(op.Transactions)),
		CreatedAt:  op.CreatedAt.Format("2006-01-02 15:04:05"),
	}
	for _, tx := range op.Transactions {
		info.Signatures = append(info.Signatures, tx.Signature)
	}
	return info
}

func (s *Server) getOperation(c *gin.Context) {
	op, err := s.journal.GetOperation(c.Param("id"))
	if err != nil {
		s.fail(c, nil, err)
		return
	}
	c.JSON(http.StatusOK, buildOperation(op))
}

func (s *Server) getOperations(c *gin.Context) {
	wallet := c.DefaultQuery("wallet", s.wallet.Player().String())
	limit := DefaultOperationLimit
	if limitStr, ok := c.GetQuery("limit"); ok {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l <= 0 {
			s.fail(c, nil, invalid(errors.New("limit is invalid")))
			return
		}
		limit = l
	}
	ops, err := s.journal.GetOperations(wallet, limit)
	if err != nil {
		s.fail(c, nil, err)
		return
	}
	infos := make([]*OperationInfo, 0, len(ops))
	for _, op := range ops {
		infos = append(infos, buildOperation(op))
	}
	c.JSON(http.StatusOK, infos)
}

func (s *Server) getTokens(c *gin.Context) {
	c.JSON(http.StatusOK, s.env.Tokens())
}

type ReserveInfo struct {
	Key            string          `json:"key"`
	LendingMarket  string          `json:"lending_market"`
	LiquidityMint  string          `json:"liquidity_mint"`
	CollateralMint string          `json:"collateral_mint"`
	Decimals       uint8           `json:"decimals"`
	Available      decimal.Decimal `json:"available"`
	Borrowed       decimal.Decimal `json:"borrowed"`
	Total          decimal.Decimal `json:"total"`
	Utilization    decimal.Decimal `json:"utilization"`
}

func (s *Server) getReserve(c *gin.Context) {
	key, err := parseKey("key", c.Param("key"))
	if err != nil {
		s.fail(c, nil, err)
		return
	}
	reserve, err := s.resolver.Reserve(c.Request.Context(), key)
	if err != nil {
		s.fail(c, nil, err)
		return
	}
	liquidity := lending.NewReserveLiquidity(&reserve.ReserveLayout)
	c.JSON(http.StatusOK, &ReserveInfo{
		Key:            reserve.Key.String(),
		LendingMarket:  reserve.LendingMarket.String(),
		LiquidityMint:  reserve.LiquidityMint.String(),
		CollateralMint: reserve.CollateralMint.String(),
		Decimals:       reserve.LiquidityMintDecimals,
		Available:      liquidity.Available,
		Borrowed:       liquidity.Borrowed,
		Total:          liquidity.Total,
		Utilization:    liquidity.Utilization,
	})
}
