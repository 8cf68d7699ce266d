package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"checkout-service/internal/checkout"
	"checkout-service/internal/model"
	"checkout-service/internal/posts"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "checkout",
		Short: "Drive a PIX checkout against a running checkout-service",
	}
	rootCmd.AddCommand(runCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type runOptions struct {
	server        string
	platform      string
	serviceType   string
	quantity      int
	price         string
	creditCardURL string
	posts         []string

	name     string
	email    string
	phone    string
	document string
	method   string

	pollInterval time.Duration
	maxPoll      time.Duration
}

func runCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Select a package, submit buyer details and wait for the payment",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.server, "server", "http://localhost:8080", "checkout-service base URL")
	f.StringVar(&opts.platform, "platform", string(posts.PlatformInstagram), "platform of the selected posts (instagram, tiktok, youtube)")
	f.StringVar(&opts.serviceType, "service", string(model.ServiceTypeFollowers), "service type (followers, likes, views)")
	f.IntVar(&opts.quantity, "quantity", 1000, "package quantity")
	f.StringVar(&opts.price, "price", "", "package price")
	f.StringVar(&opts.creditCardURL, "credit-card-url", "", "external checkout URL for credit card payments")
	f.StringArrayVar(&opts.posts, "post", nil, "selected post as returned by the platform API, in JSON (repeatable)")
	f.StringVar(&opts.name, "name", "", "buyer name")
	f.StringVar(&opts.email, "email", "", "buyer email")
	f.StringVar(&opts.phone, "phone", "", "buyer phone")
	f.StringVar(&opts.document, "document", "", "buyer CPF")
	f.StringVar(&opts.method, "method", string(model.PaymentMethodPix), "payment method (pix, credit_card)")
	f.DurationVar(&opts.pollInterval, "poll-interval", checkout.DefaultPollInterval, "status polling interval")
	f.DurationVar(&opts.maxPoll, "max-poll", checkout.DefaultMaxPollDuration, "stop polling after this long")
	_ = cmd.MarkFlagRequired("price")

	return cmd
}

func run(ctx context.Context, opts runOptions) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	price, err := decimal.NewFromString(opts.price)
	if err != nil {
		return fmt.Errorf("invalid --price: %w", err)
	}

	selected := make([]posts.Post, 0, len(opts.posts))
	for _, raw := range opts.posts {
		p, err := posts.Decode(posts.Platform(opts.platform), json.RawMessage(raw))
		if err != nil {
			return err
		}
		selected = append(selected, p)
	}

	wizard := checkout.NewWizard(checkout.NewClient(opts.server), checkout.Config{
		PollInterval:    opts.pollInterval,
		MaxPollDuration: opts.maxPoll,
	}, logger)

	err = wizard.SelectPackage(checkout.Package{
		PlatformID:    opts.platform,
		ServiceType:   model.ServiceType(opts.serviceType),
		Quantity:      opts.quantity,
		Price:         price,
		CreditCardURL: opts.creditCardURL,
	}, selected, nil)
	if err != nil {
		return err
	}

	err = wizard.SubmitDetails(ctx, checkout.BuyerDetails{
		Name:     opts.name,
		Email:    opts.email,
		Phone:    opts.phone,
		Document: opts.document,
		Method:   model.PaymentMethod(opts.method),
	})
	if err != nil {
		return err
	}

	if wizard.State() == checkout.StateExternalRedirect {
		fmt.Printf("Continue the payment at %s\n", wizard.RedirectURL())
		return nil
	}

	charge := wizard.Charge()
	fmt.Printf("Order %s, total R$ %s\n", charge.OrderID, wizard.Total().StringFixed(2))
	fmt.Printf("PIX copy and paste code:\n%s\n", charge.CopyPasteCode)
	if charge.ExpirationAt != nil {
		fmt.Printf("Expires at %s\n", charge.ExpirationAt.Local().Format(time.DateTime))
	}
	fmt.Println("Waiting for payment...")

	state, err := wizard.Poll(ctx)
	if err != nil {
		return err
	}
	if state == checkout.StateStillPending {
		fmt.Printf("Payment not confirmed yet. Check again later with order %s\n", charge.OrderID)
		return nil
	}

	conf, err := wizard.Confirmation()
	if err != nil {
		return err
	}
	fmt.Printf("Payment confirmed for %s (%s)\n", conf.Buyer, conf.Email)
	fmt.Printf("  order:    %s\n", conf.OrderID)
	fmt.Printf("  service:  %d %s\n", conf.Quantity, conf.ServiceType)
	fmt.Printf("  total:    R$ %s\n", conf.TotalAmount.StringFixed(2))
	if conf.PaidAt != nil {
		fmt.Printf("  paid at:  %s\n", conf.PaidAt.Local().Format(time.DateTime))
	}
	return nil
}
