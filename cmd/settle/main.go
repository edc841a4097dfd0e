package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/hamza-javed/amm-settlement/internal/service"
	"github.com/hamza-javed/amm-settlement/internal/token"
)

func demoPayer() string {
	return token.NewAddress("demo:payer").String()
}

func loadEnv() {
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	_ = godotenv.Load(filepath.Join(projectRoot, ".env"))
}

func main() {
	loadEnv()

	mode := flag.String("mode", "quote", "quote | execute")
	pool := flag.String("pool", "", "pool name (optional, resolved from pair if empty)")
	inTok := flag.String("in", "ALPHA", "input asset symbol")
	outTok := flag.String("out", "BETA", "output asset symbol")
	amt := flag.Int64("amt", 0, "signed amount: >0 exact input, <0 exact output")
	priceLimit := flag.Float64("price-limit", 0, "worst acceptable pool price (0 = no limit)")
	payer := flag.String("payer", "", "payer base58 address (execute mode; default demo account)")
	fund := flag.Uint64("fund", 0, "mint this much of the input asset to the payer before executing")
	flag.Parse()

	if *amt == 0 {
		fmt.Println("missing -amt (must be non-zero)")
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	svc, err := service.NewServiceFromEnv(logger)
	if err != nil {
		fmt.Println("failed to init settlement service:", err)
		os.Exit(1)
	}
	defer svc.Close()

	req := &service.SwapRequest{
		Pool:       *pool,
		AssetIn:    *inTok,
		AssetOut:   *outTok,
		Amount:     *amt,
		PriceLimit: *priceLimit,
		Payer:      *payer,
	}

	switch *mode {
	case "quote":
		q, err := svc.Quote(ctx, req)
		if err != nil {
			fmt.Println("quote failed:", err)
			os.Exit(1)
		}
		fmt.Printf("pool=%s amount_in=%d amount_out=%d min_out=%d price_impact=%.4f fee_bps=%d\n",
			q.Pool, q.AmountIn, q.AmountOut, q.MinAmountOut, q.PriceImpact, q.FeeBps)
	case "execute":
		if req.Payer == "" {
			// Demo account: each settle invocation with no -payer operates
			// on this deterministic address.
			req.Payer = demoPayer()
		}
		if *fund > 0 {
			bal, allow, err := svc.FundAccount(req.Payer, *inTok, *fund, true)
			if err != nil {
				fmt.Println("funding failed:", err)
				os.Exit(1)
			}
			fmt.Printf("funded payer=%s asset=%s balance=%d allowance=%d\n", req.Payer, *inTok, bal, allow)
		}
		res, err := svc.ExecuteSwap(ctx, req)
		if err != nil {
			fmt.Println("execute failed:", err)
			os.Exit(1)
		}
		fmt.Printf("request_id=%s pool=%s delta0=%d delta1=%d price=%.6f duration=%s\n",
			res.RequestID, res.Pool, res.Delta0, res.Delta1, res.Price, res.Duration)
	default:
		fmt.Println("invalid -mode (use quote|execute)")
		os.Exit(2)
	}
}
