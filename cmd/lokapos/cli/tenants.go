// Package cli holds operational helpers behind the lokapos admin
// subcommands. Commands read flags already parsed by main, write to
// injected streams and report exit codes instead of calling os.Exit.
package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/lokapos/lokapos/internal/shared"
	"github.com/lokapos/lokapos/internal/tenancy"
)

// TenantDirectory is the slice of the tenant service the CLI needs.
type TenantDirectory interface {
	List(ctx context.Context, page, perPage int) ([]tenancy.Tenant, shared.Pagination, error)
	Status(ctx context.Context, subdomain string) (*tenancy.StatusView, error)
	Activate(ctx context.Context, subdomain, plan string, amount float64, months int) (*tenancy.Subscription, error)
	Suspend(ctx context.Context, subdomain string) error
	Provision(ctx context.Context, subdomain string) (tenancy.ProvisionResult, error)
}

// TenantOpsCLI offers manual tenant lifecycle operations.
type TenantOpsCLI struct {
	dir TenantDirectory
}

// NewTenantOpsCLI constructs the helper around a tenant directory.
func NewTenantOpsCLI(dir TenantDirectory) (*TenantOpsCLI, error) {
	if dir == nil {
		return nil, errors.New("tenants cli: directory is required")
	}
	return &TenantOpsCLI{dir: dir}, nil
}

// TenantListOptions configures the list command.
type TenantListOptions struct {
	Page       int
	PerPage    int
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// TenantRow is one tenant in the list output.
type TenantRow struct {
	Subdomain   string `json:"subdomain"`
	Name        string `json:"name"`
	Status      string `json:"status"`
	OwnerEmail  string `json:"ownerEmail"`
	TrialEndsAt string `json:"trialEndsAt,omitempty"`
}

// TenantListSummary is the structured list command output.
type TenantListSummary struct {
	Page       int         `json:"page"`
	TotalPages int         `json:"totalPages"`
	Total      int         `json:"total"`
	Tenants    []TenantRow `json:"tenants"`
}

// ListCommand prints the tenant directory page by page.
func (c *TenantOpsCLI) ListCommand(ctx context.Context, opts TenantListOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	tenants, pagination, err := c.dir.List(ctx, opts.Page, opts.PerPage)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "tenants list: %v\n", err)
		return 1
	}
	summary := TenantListSummary{
		Page:       pagination.Page,
		TotalPages: pagination.TotalPages,
		Total:      pagination.Total,
		Tenants:    make([]TenantRow, 0, len(tenants)),
	}
	for _, t := range tenants {
		row := TenantRow{
			Subdomain:  t.Subdomain,
			Name:       t.Name,
			Status:     string(t.Status),
			OwnerEmail: t.OwnerEmail,
		}
		if t.TrialEndsAt != nil {
			row.TrialEndsAt = t.TrialEndsAt.UTC().Format(time.RFC3339)
		}
		summary.Tenants = append(summary.Tenants, row)
	}
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(summary); err != nil {
			fmt.Fprintf(opts.Stderr, "tenants list: %v\n", err)
			return 1
		}
		return 0
	}
	fmt.Fprintf(opts.Stdout, "Tenants (page %d of %d, %d total)\n", summary.Page, summary.TotalPages, summary.Total)
	for _, row := range summary.Tenants {
		line := fmt.Sprintf(" - %s\t%s\t%s\t%s", row.Subdomain, row.Status, row.Name, row.OwnerEmail)
		if row.TrialEndsAt != "" {
			line += "\ttrial ends " + row.TrialEndsAt
		}
		fmt.Fprintln(opts.Stdout, line)
	}
	return 0
}

// TenantStatusOptions configures the status command.
type TenantStatusOptions struct {
	Subdomain  string
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// StatusCommand prints lifecycle and provisioning state for one tenant.
func (c *TenantOpsCLI) StatusCommand(ctx context.Context, opts TenantStatusOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	subdomain := strings.ToLower(strings.TrimSpace(opts.Subdomain))
	if subdomain == "" {
		fmt.Fprintln(opts.Stderr, "tenants status: --tenant is required")
		return 1
	}
	view, err := c.dir.Status(ctx, subdomain)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "tenants status: %v\n", err)
		return 1
	}
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(view); err != nil {
			fmt.Fprintf(opts.Stderr, "tenants status: %v\n", err)
			return 1
		}
		return 0
	}
	fmt.Fprintf(opts.Stdout, "%s (%s): %s\n", view.Subdomain, view.Name, view.Status)
	if view.Provisioned {
		fmt.Fprintf(opts.Stdout, "database %s provisioned\n", view.DatabaseName)
	} else {
		fmt.Fprintf(opts.Stdout, "database %s not provisioned yet\n", view.DatabaseName)
	}
	if view.TrialEndsAt != nil {
		fmt.Fprintf(opts.Stdout, "trial ends %s\n", view.TrialEndsAt.UTC().Format(time.RFC3339))
	}
	return 0
}

// TenantActivateOptions configures the activate command.
type TenantActivateOptions struct {
	Subdomain  string
	Plan       string
	Amount     float64
	Months     int
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// ActivateCommand records a paid subscription and activates the tenant.
func (c *TenantOpsCLI) ActivateCommand(ctx context.Context, opts TenantActivateOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	subdomain := strings.ToLower(strings.TrimSpace(opts.Subdomain))
	if subdomain == "" {
		fmt.Fprintln(opts.Stderr, "tenants activate: --tenant is required")
		return 1
	}
	if opts.Months <= 0 {
		fmt.Fprintln(opts.Stderr, "tenants activate: --months must be positive")
		return 1
	}
	sub, err := c.dir.Activate(ctx, subdomain, opts.Plan, opts.Amount, opts.Months)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "tenants activate: %v\n", err)
		return 1
	}
	if opts.JSONOutput {
		payload := map[string]any{
			"subdomain": subdomain,
			"plan":      sub.Plan,
			"amount":    sub.Amount,
			"startsAt":  sub.StartsAt.UTC().Format(time.RFC3339),
			"endsAt":    sub.EndsAt.UTC().Format(time.RFC3339),
		}
		if err := json.NewEncoder(opts.Stdout).Encode(payload); err != nil {
			fmt.Fprintf(opts.Stderr, "tenants activate: %v\n", err)
			return 1
		}
		return 0
	}
	fmt.Fprintf(opts.Stdout, "%s activated on plan %s until %s\n", subdomain, sub.Plan, sub.EndsAt.UTC().Format(time.RFC3339))
	return 0
}

// TenantSuspendOptions configures the suspend command.
type TenantSuspendOptions struct {
	Subdomain string
	Stdin     io.Reader
	Stdout    io.Writer
	Stderr    io.Writer
	Confirm   func(io.Reader, io.Writer) (bool, error)
}

// SuspendCommand blocks a tenant after interactive confirmation.
func (c *TenantOpsCLI) SuspendCommand(ctx context.Context, opts TenantSuspendOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	subdomain := strings.ToLower(strings.TrimSpace(opts.Subdomain))
	if subdomain == "" {
		fmt.Fprintln(opts.Stderr, "tenants suspend: --tenant is required")
		return 1
	}
	confirm := opts.Confirm
	if confirm == nil {
		confirm = defaultSuspendConfirm
	}
	ok, err := confirm(opts.Stdin, opts.Stdout)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "tenants suspend: confirmation failed: %v\n", err)
		return 1
	}
	if !ok {
		fmt.Fprintln(opts.Stderr, "tenants suspend: cancelled by user")
		return 1
	}
	if err := c.dir.Suspend(ctx, subdomain); err != nil {
		fmt.Fprintf(opts.Stderr, "tenants suspend: %v\n", err)
		return 1
	}
	fmt.Fprintf(opts.Stdout, "%s suspended\n", subdomain)
	return 0
}

// TenantProvisionOptions configures the provision command.
type TenantProvisionOptions struct {
	Subdomain string
	Stdout    io.Writer
	Stderr    io.Writer
}

// ProvisionCommand creates the tenant database ahead of first use.
func (c *TenantOpsCLI) ProvisionCommand(ctx context.Context, opts TenantProvisionOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	subdomain := strings.ToLower(strings.TrimSpace(opts.Subdomain))
	if subdomain == "" {
		fmt.Fprintln(opts.Stderr, "tenants provision: --tenant is required")
		return 1
	}
	result, err := c.dir.Provision(ctx, subdomain)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "tenants provision: %v\n", err)
		return 1
	}
	if result.Created {
		fmt.Fprintf(opts.Stdout, "database %s created\n", result.DatabaseName)
	} else {
		fmt.Fprintf(opts.Stdout, "database %s already exists\n", result.DatabaseName)
	}
	return 0
}

func defaultSuspendConfirm(r io.Reader, w io.Writer) (bool, error) {
	fmt.Fprint(w, "Suspend this tenant? Type YES to confirm: ")
	reader := bufio.NewReader(r)
	line, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	return strings.EqualFold(strings.TrimSpace(line), "YES"), nil
}
