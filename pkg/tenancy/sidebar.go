package tenancy

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// SidebarTemplate describes one navigation entry to seed. Link may contain
// the placeholder {id}, replaced with the agency or subaccount id.
type SidebarTemplate struct {
	Name string `yaml:"name"`
	Icon string `yaml:"icon"`
	Link string `yaml:"link"`
}

// sidebarTemplateFile is the on-disk YAML shape.
type sidebarTemplateFile struct {
	Agency     []SidebarTemplate `yaml:"agency"`
	SubAccount []SidebarTemplate `yaml:"subaccount"`
}

// SidebarTemplates holds the navigation entries seeded when an agency or
// subaccount is first created. Safe for concurrent use; Watch reloads the
// backing file on change.
type SidebarTemplates struct {
	mu         sync.RWMutex
	agency     []SidebarTemplate
	subAccount []SidebarTemplate
}

// DefaultSidebarTemplates returns the built-in menu sets.
func DefaultSidebarTemplates() *SidebarTemplates {
	return &SidebarTemplates{
		agency: []SidebarTemplate{
			{Name: "Dashboard", Icon: "category", Link: "/agency/{id}"},
			{Name: "Launchpad", Icon: "clipboardIcon", Link: "/agency/{id}/launchpad"},
			{Name: "Billing", Icon: "payment", Link: "/agency/{id}/billing"},
			{Name: "Settings", Icon: "settings", Link: "/agency/{id}/settings"},
			{Name: "Sub Accounts", Icon: "person", Link: "/agency/{id}/all-subaccounts"},
			{Name: "Team", Icon: "shield", Link: "/agency/{id}/team"},
		},
		subAccount: []SidebarTemplate{
			{Name: "Launchpad", Icon: "clipboardIcon", Link: "/subaccount/{id}/launchpad"},
			{Name: "Settings", Icon: "settings", Link: "/subaccount/{id}/settings"},
			{Name: "Funnels", Icon: "pipelines", Link: "/subaccount/{id}/funnels"},
			{Name: "Media", Icon: "database", Link: "/subaccount/{id}/media"},
			{Name: "Automations", Icon: "chip", Link: "/subaccount/{id}/automations"},
			{Name: "Pipelines", Icon: "flag", Link: "/subaccount/{id}/pipelines"},
			{Name: "Contacts", Icon: "person", Link: "/subaccount/{id}/contacts"},
			{Name: "Dashboard", Icon: "category", Link: "/subaccount/{id}"},
		},
	}
}

// LoadSidebarTemplates reads template sets from a YAML file. Sections left
// empty in the file fall back to the built-in defaults.
func LoadSidebarTemplates(path string) (*SidebarTemplates, error) {
	t := DefaultSidebarTemplates()
	if err := t.reload(path); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *SidebarTemplates) reload(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read sidebar templates: %w", err)
	}
	var file sidebarTemplateFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse sidebar templates: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if len(file.Agency) > 0 {
		t.agency = file.Agency
	}
	if len(file.SubAccount) > 0 {
		t.subAccount = file.SubAccount
	}
	return nil
}

// Watch reloads the template file whenever it changes. Returns a stop
// function. Reload failures keep the previous templates; onError may be nil.
func (t *SidebarTemplates) Watch(path string, onError func(error)) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", path, err)
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := t.reload(path); err != nil && onError != nil {
					onError(err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				if onError != nil {
					onError(err)
				}
			}
		}
	}()

	return func() { watcher.Close() }, nil
}

// AgencyOptions renders the agency template set for agencyID.
func (t *SidebarTemplates) AgencyOptions(agencyID string) []*SidebarOption {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return render(t.agency, agencyID, agencyID, "")
}

// SubAccountOptions renders the subaccount template set for subAccountID.
func (t *SidebarTemplates) SubAccountOptions(subAccountID string) []*SidebarOption {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return render(t.subAccount, subAccountID, "", subAccountID)
}

func render(templates []SidebarTemplate, id, agencyID, subAccountID string) []*SidebarOption {
	opts := make([]*SidebarOption, 0, len(templates))
	for _, tmpl := range templates {
		opts = append(opts, &SidebarOption{
			ID:           uuid.NewString(),
			Name:         tmpl.Name,
			Icon:         tmpl.Icon,
			Link:         strings.ReplaceAll(tmpl.Link, "{id}", id),
			AgencyID:     agencyID,
			SubAccountID: subAccountID,
		})
	}
	return opts
}
