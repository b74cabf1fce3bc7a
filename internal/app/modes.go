package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"backpack-volume/internal/account"
	"backpack-volume/internal/exchange"
	"backpack-volume/internal/signer"
)

const volumeConcurrency = 4

// Markets 列出可交易标的，每行一个序号与标的名。
func (a *App) Markets(ctx context.Context) error {
	client, err := exchange.NewClient(a.cfg.Exchange, nil, "", a.logger)
	if err != nil {
		return fmt.Errorf("初始化行情客户端失败: %w", err)
	}

	markets, err := client.Markets(ctx)
	if err != nil {
		return fmt.Errorf("获取交易对失败: %w", err)
	}

	for i, m := range markets {
		fmt.Fprintf(a.out, "%d %s\n", i, m.Symbol)
	}
	return nil
}

type accountVolume struct {
	id      string
	summary account.VolumeSummary
	err     error
}

// Volume 汇总每个账户在当前标的上的历史成交额与手续费。
func (a *App) Volume(ctx context.Context) error {
	accounts, err := account.Load(a.cfg.Accounts)
	if err != nil {
		return fmt.Errorf("加载账户失败: %w", err)
	}

	results := make([]accountVolume, len(accounts))
	var g errgroup.Group
	g.SetLimit(volumeConcurrency)
	for i, acc := range accounts {
		g.Go(func() error {
			results[i] = a.accountVolume(ctx, acc)
			return nil
		})
	}
	_ = g.Wait()

	var total account.VolumeSummary
	for _, r := range results {
		if r.err != nil {
			a.logger.Error("统计账户成交额失败", zap.String("account", r.id), zap.Error(r.err))
			fmt.Fprintf(a.out, "%s error: %v\n", r.id, r.err)
			continue
		}
		total.Fills += r.summary.Fills
		total.Volume += r.summary.Volume
		total.Fees += r.summary.Fees
		fmt.Fprintf(a.out, "%s fills=%d volume=%.2f fees=%.4f\n", r.id, r.summary.Fills, r.summary.Volume, r.summary.Fees)
	}
	fmt.Fprintf(a.out, "total fills=%d volume=%.2f fees=%.4f\n", total.Fills, total.Volume, total.Fees)
	return nil
}

func (a *App) accountVolume(ctx context.Context, acc *account.Account) accountVolume {
	res := accountVolume{id: acc.ID}

	s, err := signer.New(acc.Credential.PublicKey, acc.Credential.PrivateKey, a.cfg.Exchange.Window)
	if err != nil {
		res.err = err
		return res
	}
	client, err := exchange.NewClient(a.cfg.Exchange, s, acc.Proxy, a.logger)
	if err != nil {
		res.err = err
		return res
	}

	fills, err := account.CollectFills(ctx, client, a.cfg.Trading.Symbol, 0)
	if err != nil {
		res.err = err
		return res
	}
	res.summary = account.Summarize(fills)
	return res
}
