// Package cli is a line-oriented front end over the aggregator.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"catalog/browser/internal/aggregator"
	"catalog/browser/internal/domain"

	log "github.com/sirupsen/logrus"
)

// Browser is the part of the aggregator the front end drives
type Browser interface {
	Sections() []domain.Section
	State() aggregator.State
	Loading() bool
	Online() bool
	ToggleSection(ctx context.Context, slug string)
	ReportScrollBoundary()
	LoadMoreCategories(ctx context.Context)
	SearchInput(ctx context.Context, text string)
	Search(ctx context.Context, query string)
	Refresh(ctx context.Context)
	ToggleFavorite(ctx context.Context, product domain.Product) bool
	IsFavorite(id int) bool
	Favorites() []domain.Product
	Product(id int) (domain.Product, bool)
}

// ProductSource serves the details view and the flat product listing
type ProductSource interface {
	GetProduct(ctx context.Context, id int) (*domain.Product, error)
	GetProducts(ctx context.Context, skip, limit int) (*domain.ProductPage, error)
}

const listPageSize = 10

type CLI struct {
	browser  Browser
	products ProductSource
	in       io.Reader
	out      io.Writer
	changed  chan struct{}
}

func New(browser Browser, products ProductSource, in io.Reader, out io.Writer) *CLI {
	return &CLI{
		browser:  browser,
		products: products,
		in:       in,
		out:      out,
		changed:  make(chan struct{}, 1),
	}
}

// Notify schedules a re-render; bursts of changes coalesce into one
func (c *CLI) Notify() {
	select {
	case c.changed <- struct{}{}:
	default:
	}
}

// Run reads commands until quit, end of input or ctx is done. State changes
// reported through Notify are rendered between commands.
func (c *CLI) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	errCh := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errCh <- scanner.Err()
	}()

	c.printf("Type 'help' for commands.\n")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.changed:
			c.Render()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-errCh:
					if err != nil {
						return fmt.Errorf("failed to read input: %w", err)
					}
				default:
				}
				return nil
			}
			if quit := c.Execute(ctx, line); quit {
				return nil
			}
		}
	}
}

// Execute runs a single command line and reports whether the session should end
func (c *CLI) Execute(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "quit", "exit":
		return true
	case "help":
		c.printHelp()
	case "ls":
		c.Render()
	case "open", "toggle":
		if len(args) != 1 {
			c.printf("usage: open <slug>\n")
			return false
		}
		c.browser.ToggleSection(ctx, args[0])
	case "more":
		c.browser.ReportScrollBoundary()
		c.browser.LoadMoreCategories(ctx)
	case "search":
		if len(args) == 0 {
			// Clearing skips the debounce delay
			c.browser.Search(ctx, "")
			return false
		}
		c.browser.SearchInput(ctx, strings.Join(args, " "))
	case "fav":
		c.toggleFavorite(ctx, args)
	case "favs":
		c.renderFavorites()
	case "details":
		c.details(ctx, args)
	case "all":
		c.listAll(ctx, args)
	case "refresh":
		c.browser.Refresh(ctx)
	default:
		c.printf("unknown command %q, type 'help'\n", cmd)
	}

	return false
}

// Render prints every section with its visible products
func (c *CLI) Render() {
	state := c.browser.State()
	sections := c.browser.Sections()

	status := "online"
	if !c.browser.Online() {
		status = "offline"
	}
	if state.SearchQuery != "" {
		status += fmt.Sprintf(", search %q", state.SearchQuery)
	}
	if c.browser.Loading() {
		status += ", loading"
	}
	c.printf("== %d categories (%s)\n", len(sections), status)

	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	for _, section := range sections {
		marker := "+"
		for _, slug := range state.ExpandedSections {
			if slug == section.Slug {
				marker = "-"
				break
			}
		}
		fmt.Fprintf(w, "%s %s\t[%s]\t\n", marker, section.Title, section.Slug)
		for _, p := range section.Data {
			c.writeProductRow(w, p)
		}
	}
	if err := w.Flush(); err != nil {
		log.Debugf("Failed to flush output: %v", err)
	}
}

func (c *CLI) writeProductRow(w io.Writer, p domain.Product) {
	star := " "
	if c.browser.IsFavorite(p.ID) {
		star = "*"
	}
	fmt.Fprintf(w, "   %s #%d %s\t$%s\trating %.2f\t\n", star, p.ID, p.Title, p.Price.StringFixed(2), p.Rating)
}

func (c *CLI) toggleFavorite(ctx context.Context, args []string) {
	id, ok := c.parseID(args, "fav")
	if !ok {
		return
	}

	product, found := c.browser.Product(id)
	if !found {
		c.printf("product %d has not been loaded yet\n", id)
		return
	}

	if c.browser.ToggleFavorite(ctx, product) {
		c.printf("added #%d %s to favorites\n", id, product.Title)
	} else {
		c.printf("removed #%d %s from favorites\n", id, product.Title)
	}
}

func (c *CLI) renderFavorites() {
	favorites := c.browser.Favorites()
	if len(favorites) == 0 {
		c.printf("no favorites yet\n")
		return
	}

	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	for _, p := range favorites {
		c.writeProductRow(w, p)
	}
	_ = w.Flush()
}

func (c *CLI) details(ctx context.Context, args []string) {
	id, ok := c.parseID(args, "details")
	if !ok {
		return
	}

	product, err := c.products.GetProduct(ctx, id)
	if err != nil {
		log.Warnf("⚠️ Failed to fetch product details: %v", err)
		cached, found := c.browser.Product(id)
		if !found {
			c.printf("product not found.\n")
			return
		}
		product = &cached
	}

	availability := "Out of Stock"
	if product.InStock() {
		availability = "In Stock"
	}

	c.printf("%s\n$%s  rating %.2f  %s\n%s\n%s\n",
		product.Title, product.Price.StringFixed(2), product.Rating, availability,
		product.Thumbnail, product.Description)
}

func (c *CLI) listAll(ctx context.Context, args []string) {
	page := 0
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			c.printf("usage: all [page]\n")
			return
		}
		page = n
	}

	result, err := c.products.GetProducts(ctx, page*listPageSize, listPageSize)
	if err != nil {
		log.Warnf("⚠️ Failed to list products: %v", err)
		c.printf("could not load products\n")
		return
	}

	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	for _, p := range result.Products {
		c.writeProductRow(w, p)
	}
	_ = w.Flush()
	c.printf("products %d-%d of %d\n", result.Skip+1, result.Skip+len(result.Products), result.Total)
}

func (c *CLI) parseID(args []string, cmd string) (int, bool) {
	if len(args) != 1 {
		c.printf("usage: %s <id>\n", cmd)
		return 0, false
	}
	id, err := strconv.Atoi(strings.TrimPrefix(args[0], "#"))
	if err != nil {
		c.printf("invalid product id %q\n", args[0])
		return 0, false
	}
	return id, true
}

func (c *CLI) printHelp() {
	c.printf(`commands:
  ls               show sections
  open <slug>      expand or collapse a category
  more             load the next category page
  search [query]   search products, empty query clears
  fav <id>         toggle a favorite
  favs             list favorites
  details <id>     show product details
  all [page]       list all products
  refresh          reload categories
  quit
`)
}

func (c *CLI) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}
