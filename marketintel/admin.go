// CLAUDE:SUMMARY Company and product administration: create, update, soft deactivation, listing, competitor reference checks.
package marketintel

import (
	"context"
	"fmt"
)

// --- Companies ---

// CreateCompany validates and inserts an active company. An empty ID is
// generated. CompetitorTo must name an existing company and must not close
// a competitor cycle.
func (svc *Service) CreateCompany(ctx context.Context, c *Company) error {
	if c.ID == "" {
		c.ID = svc.newCompanyID()
	}
	if err := validateCompanyInput(c); err != nil {
		return err
	}
	existing, err := svc.store.GetCompany(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("get company: %w", err)
	}
	if existing != nil {
		return fmt.Errorf("%w: company %s already exists", ErrValidation, c.ID)
	}
	if err := svc.checkCompetitorRef(ctx, c); err != nil {
		return err
	}
	c.Active = true
	if err := svc.store.InsertCompany(ctx, c); err != nil {
		return fmt.Errorf("insert company: %w", err)
	}
	svc.logger.InfoContext(ctx, "marketintel: company created", "company_id", c.ID, "name", c.Name)
	return nil
}

// UpdateCompany rewrites name, domain, industry and competitor reference.
// The active flag is left as stored.
func (svc *Service) UpdateCompany(ctx context.Context, c *Company) error {
	existing, err := svc.GetCompany(ctx, c.ID)
	if err != nil {
		return err
	}
	if err := validateCompanyInput(c); err != nil {
		return err
	}
	if err := svc.checkCompetitorRef(ctx, c); err != nil {
		return err
	}
	c.Active = existing.Active
	c.CreatedAt = existing.CreatedAt
	if err := svc.store.UpdateCompany(ctx, c); err != nil {
		return fmt.Errorf("update company: %w", err)
	}
	return nil
}

// DeactivateCompany soft-deactivates a company. Its products and their
// observations are kept.
func (svc *Service) DeactivateCompany(ctx context.Context, id string) error {
	if _, err := svc.GetCompany(ctx, id); err != nil {
		return err
	}
	if err := svc.store.SetCompanyActive(ctx, id, false); err != nil {
		return fmt.Errorf("deactivate company: %w", err)
	}
	svc.logger.InfoContext(ctx, "marketintel: company deactivated", "company_id", id)
	return nil
}

// GetCompany returns a company, active or not.
func (svc *Service) GetCompany(ctx context.Context, id string) (*Company, error) {
	c, err := svc.store.GetCompany(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get company: %w", err)
	}
	if c == nil {
		return nil, fmt.Errorf("%w: company %s", ErrNotFound, id)
	}
	return c, nil
}

// ListCompanies returns companies ordered by name.
func (svc *Service) ListCompanies(ctx context.Context, activeOnly bool) ([]*Company, error) {
	list, err := svc.store.ListCompanies(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*Company{}
	}
	return list, nil
}

// checkCompetitorRef walks the competitor_to chain starting at c's target.
// Reaching c again is a cycle.
func (svc *Service) checkCompetitorRef(ctx context.Context, c *Company) error {
	if c.CompetitorTo == "" {
		return nil
	}
	seen := map[string]bool{}
	next := c.CompetitorTo
	for next != "" {
		if next == c.ID {
			return fmt.Errorf("%w: competitor_to %s would create a cycle", ErrValidation, c.CompetitorTo)
		}
		if seen[next] {
			// Pre-existing loop not involving c.
			return nil
		}
		seen[next] = true
		target, err := svc.store.GetCompany(ctx, next)
		if err != nil {
			return fmt.Errorf("get company: %w", err)
		}
		if target == nil {
			if next == c.CompetitorTo {
				return fmt.Errorf("%w: competitor_to company %s", ErrNotFound, next)
			}
			return nil
		}
		next = target.CompetitorTo
	}
	return nil
}

// --- Products ---

// CreateProduct validates and inserts an active product owned by an
// existing company. An empty ID is generated; the URL is normalized.
func (svc *Service) CreateProduct(ctx context.Context, p *Product) error {
	if p.ID == "" {
		p.ID = svc.newProductID()
	}
	if err := validateProductInput(p); err != nil {
		return err
	}
	if _, err := svc.GetCompany(ctx, p.CompanyID); err != nil {
		return err
	}
	existing, err := svc.store.GetProduct(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("get product: %w", err)
	}
	if existing != nil {
		return fmt.Errorf("%w: product %s already exists", ErrValidation, p.ID)
	}
	p.Active = true
	if err := svc.store.InsertProduct(ctx, p); err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	svc.logger.InfoContext(ctx, "marketintel: product created", "product_id", p.ID, "company_id", p.CompanyID)
	return nil
}

// UpdateProduct rewrites a product's mutable fields. Moving a product to
// another company is allowed when that company exists.
func (svc *Service) UpdateProduct(ctx context.Context, p *Product) error {
	existing, err := svc.GetProduct(ctx, p.ID)
	if err != nil {
		return err
	}
	if p.CompanyID == "" {
		p.CompanyID = existing.CompanyID
	}
	if err := validateProductInput(p); err != nil {
		return err
	}
	if p.CompanyID != existing.CompanyID {
		if _, err := svc.GetCompany(ctx, p.CompanyID); err != nil {
			return err
		}
	}
	p.Active = existing.Active
	p.CreatedAt = existing.CreatedAt
	if err := svc.store.UpdateProduct(ctx, p); err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	return nil
}

// DeactivateProduct stops scraping a product. Its observations are kept.
func (svc *Service) DeactivateProduct(ctx context.Context, id string) error {
	if _, err := svc.GetProduct(ctx, id); err != nil {
		return err
	}
	if err := svc.store.SetProductActive(ctx, id, false); err != nil {
		return fmt.Errorf("deactivate product: %w", err)
	}
	svc.logger.InfoContext(ctx, "marketintel: product deactivated", "product_id", id)
	return nil
}

// GetProduct returns a product, active or not.
func (svc *Service) GetProduct(ctx context.Context, id string) (*Product, error) {
	p, err := svc.store.GetProduct(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: product %s", ErrNotFound, id)
	}
	return p, nil
}

// ListProducts returns the products of a company, or of every company when
// companyID is empty.
func (svc *Service) ListProducts(ctx context.Context, companyID string, activeOnly bool) ([]*Product, error) {
	if companyID != "" {
		if _, err := svc.GetCompany(ctx, companyID); err != nil {
			return nil, err
		}
	}
	list, err := svc.store.ListProducts(ctx, companyID, activeOnly)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*Product{}
	}
	return list, nil
}
