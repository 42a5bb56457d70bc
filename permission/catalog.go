package permission

import "sync"

// Dashboard sections, used as permission names.
const (
	Clients     = "clientes"
	Finance     = "financeiro"
	Invoices    = "notas"
	Tasks       = "tarefas"
	Plans       = "planos"
	MyAccount   = "minha-conta"
	SupportChat = "chat-suporte"
	WhatsApp    = "whatsapp"
	Gateways    = "gateways"
	ManageUsers = "gerenciar-usuarios"
	Settings    = "configuracao"
)

const (
	standardWire = "usuario"
	premiumWire  = "premium"
	rootRoleWire = "admin"
)

var standardSections = []string{Clients, Finance, Invoices, Tasks, Plans, MyAccount, SupportChat}

// Catalog is a frozen registry plus the role grants built on it.
type Catalog struct {
	registry *Registry
	roles    *RoleManager
}

// Allows reports whether role may open the section perm.
func (c *Catalog) Allows(role, perm string) bool {
	if c == nil {
		return false
	}
	return c.roles.Allows(role, perm)
}

// Sections returns every section role may open, in catalogue order.
func (c *Catalog) Sections(role string) []string {
	var out []string
	for _, name := range c.registry.Names() {
		if c.roles.Allows(role, name) {
			out = append(out, name)
		}
	}
	return out
}

var (
	dashboardOnce sync.Once
	dashboard     *Catalog
)

// Dashboard returns the dashboard's catalogue: standard users see the core
// sections, premium users add the integrations, and administrators hold the root
// bit. Pending accounts are not registered and are denied everything.
func Dashboard() *Catalog {
	dashboardOnce.Do(func() {
		c, err := buildDashboard()
		if err != nil {
			panic("permission: dashboard catalogue: " + err.Error())
		}
		dashboard = c
	})
	return dashboard
}

func buildDashboard() (*Catalog, error) {
	reg := NewRegistry(true)
	all := append(append([]string{}, standardSections...), WhatsApp, Gateways, ManageUsers, Settings)
	for _, name := range all {
		if _, err := reg.Register(name); err != nil {
			return nil, err
		}
	}
	reg.Freeze()

	rm := NewRoleManager(reg)
	if err := rm.RegisterRole(standardWire, standardSections); err != nil {
		return nil, err
	}
	premium := append(append([]string{}, standardSections...), WhatsApp, Gateways)
	if err := rm.RegisterRole(premiumWire, premium); err != nil {
		return nil, err
	}
	if err := rm.RegisterRoot(rootRoleWire); err != nil {
		return nil, err
	}
	rm.Freeze()

	return &Catalog{registry: reg, roles: rm}, nil
}
