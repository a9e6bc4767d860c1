package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"secondhand/internal/client/api"
	"secondhand/internal/client/orders"
	"secondhand/internal/domain"
)

type stringList []string

func (s *stringList) String() string     { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error { *s = append(*s, v); return nil }

// readSecret falls back to the first line of stdin when the flag is empty.
func readSecret(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.TrimRight(line, "\r\n")
}

func cmdLogin(ctx context.Context, a *app, args []string) int {
	fs := newFlags("login", a)
	user := fs.String("u", "", "username")
	pass := fs.String("p", "", "password (read from stdin when empty)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	a.nav.Go("/auth")
	if !a.auth.Login(ctx, api.LoginRequest{Username: *user, Password: readSecret(*pass)}) {
		return 1
	}
	return 0
}

func cmdRegister(ctx context.Context, a *app, args []string) int {
	fs := newFlags("register", a)
	user := fs.String("u", "", "username")
	pass := fs.String("p", "", "password (read from stdin when empty)")
	email := fs.String("email", "", "email address")
	phone := fs.String("phone", "", "phone number")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	a.nav.Go("/auth")
	in := api.RegisterRequest{Username: *user, Password: readSecret(*pass), Email: *email, Phone: *phone}
	if !a.auth.Register(ctx, in) {
		return 1
	}
	return 0
}

func cmdLogout(ctx context.Context, a *app, _ []string) int {
	a.auth.Logout(ctx)
	return 0
}

func cmdWhoami(ctx context.Context, a *app, _ []string) int {
	a.auth.Refresh(ctx)
	u := a.auth.CurrentUser()
	if u == nil {
		fmt.Fprintln(a.stderr, "not signed in")
		return 1
	}
	return a.print(u)
}

func cmdPasswd(ctx context.Context, a *app, args []string) int {
	fs := newFlags("passwd", a)
	oldPw := fs.String("old", "", "current password")
	newPw := fs.String("new", "", "new password")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if !a.enter("/profile") {
		return 1
	}
	if !a.auth.ChangePassword(ctx, *oldPw, *newPw) {
		return 1
	}
	return 0
}

func cmdCategories(ctx context.Context, a *app, _ []string) int {
	cats, err := a.client.Categories(ctx)
	if err != nil {
		return a.fail(err)
	}
	for _, c := range cats {
		fmt.Fprintf(a.stdout, "%-12s %s\n", c.Key, c.Label)
	}
	return 0
}

func idArg(a *app, fs *flag.FlagSet) (int64, bool) {
	id, err := strconv.ParseInt(fs.Arg(0), 10, 64)
	if err != nil || id < 1 {
		fmt.Fprintf(a.stderr, "%s: expected a numeric id\n", fs.Name())
		return 0, false
	}
	return id, true
}

func subcommand(ctx context.Context, a *app, group string, args []string, subs map[string]command) int {
	if len(args) == 0 {
		fmt.Fprintf(a.stderr, "usage: secondhand %s <%s>\n", group, strings.Join(keys(subs), "|"))
		return 2
	}
	cmd, ok := subs[args[0]]
	if !ok {
		fmt.Fprintf(a.stderr, "unknown %s command %q\n", group, args[0])
		return 2
	}
	return cmd(ctx, a, args[1:])
}

func keys(m map[string]command) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func cmdProducts(ctx context.Context, a *app, args []string) int {
	return subcommand(ctx, a, "products", args, map[string]command{
		"list":   productsList,
		"show":   productsShow,
		"mine":   productsMine,
		"create": productsCreate,
		"update": productsUpdate,
		"delete": productsDelete,
	})
}

func productsList(ctx context.Context, a *app, args []string) int {
	fs := newFlags("products list", a)
	var q api.ProductQuery
	fs.StringVar(&q.Keyword, "q", "", "keyword")
	cat := fs.String("category", "", "category key")
	fs.Int64Var(&q.SellerID, "seller", 0, "seller id")
	fs.IntVar(&q.Page, "page", 1, "page")
	fs.IntVar(&q.PageSize, "size", 12, "page size")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	q.Category = domain.Category(*cat)
	page, err := a.client.Products(ctx, q)
	if err != nil {
		return a.fail(err)
	}
	printProducts(a, page)
	return 0
}

// shownStatus never presents a product without stock as on sale.
func shownStatus(p domain.Product) string {
	if !p.Available() && p.Status == domain.ProductOnSale {
		return "unavailable"
	}
	return string(p.Status)
}

func printProducts(a *app, page domain.Page[domain.Product]) {
	for _, p := range page.List {
		fmt.Fprintf(a.stdout, "%5d  %-30s %10.2f  stock %-4d %-11s %s\n", p.ID, p.Name, p.Price, p.Stock, shownStatus(p), p.SellerName)
	}
	fmt.Fprintf(a.stdout, "page %d, %d of %d\n", page.Page, len(page.List), page.Total)
}

func productsShow(ctx context.Context, a *app, args []string) int {
	fs := newFlags("products show", a)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	id, ok := idArg(a, fs)
	if !ok {
		return 2
	}
	a.nav.Go("/product/" + strconv.FormatInt(id, 10))
	p, err := a.client.Product(ctx, id)
	if err != nil {
		return a.fail(err)
	}
	return a.print(struct {
		domain.Product
		Status    string `json:"status"`
		Available bool   `json:"available"`
	}{p, shownStatus(p), p.Available()})
}

func productsMine(ctx context.Context, a *app, args []string) int {
	fs := newFlags("products mine", a)
	pg := fs.Int("page", 1, "page")
	size := fs.Int("size", 12, "page size")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if !a.enter("/my-products") {
		return 1
	}
	page, err := a.client.MyProducts(ctx, *pg, *size)
	if err != nil {
		return a.fail(err)
	}
	printProducts(a, page)
	return 0
}

// productFlags binds every product field; only flags the user set end up
// in the request.
func productFlags(fs *flag.FlagSet) func() api.ProductInput {
	name := fs.String("name", "", "name")
	cat := fs.String("category", "", "category key")
	price := fs.Float64("price", 0, "price")
	stock := fs.Int("stock", 0, "stock")
	desc := fs.String("desc", "", "description")
	status := fs.String("status", "", "on_sale or off_sale")
	var images stringList
	fs.Var(&images, "image", "image url (repeatable)")
	return func() api.ProductInput {
		var in api.ProductInput
		fs.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "name":
				in.Name = name
			case "category":
				in.Category = cat
			case "price":
				in.Price = price
			case "stock":
				in.Stock = stock
			case "desc":
				in.Description = desc
			case "status":
				in.Status = status
			case "image":
				imgs := []string(images)
				in.Images = &imgs
			}
		})
		return in
	}
}

func productsCreate(ctx context.Context, a *app, args []string) int {
	fs := newFlags("products create", a)
	input := productFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if !a.enter("/upload") {
		return 1
	}
	p, err := a.client.CreateProduct(ctx, input())
	if err != nil {
		return a.fail(err)
	}
	a.client.Notifier().Success("product listed")
	return a.print(p)
}

func productsUpdate(ctx context.Context, a *app, args []string) int {
	fs := newFlags("products update", a)
	input := productFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	id, ok := idArg(a, fs)
	if !ok {
		return 2
	}
	if !a.enter("/my-products") {
		return 1
	}
	p, err := a.client.UpdateProduct(ctx, id, input())
	if err != nil {
		return a.fail(err)
	}
	a.client.Notifier().Success("product updated")
	return a.print(p)
}

func productsDelete(ctx context.Context, a *app, args []string) int {
	fs := newFlags("products delete", a)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	id, ok := idArg(a, fs)
	if !ok {
		return 2
	}
	if !a.enter("/my-products") {
		return 1
	}
	if err := a.client.DeleteProduct(ctx, id); err != nil {
		return a.fail(err)
	}
	a.client.Notifier().Success("product removed")
	return 0
}

func cmdUpload(ctx context.Context, a *app, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(a.stderr, "usage: secondhand upload <file>")
		return 2
	}
	if !a.enter("/upload") {
		return 1
	}
	f, err := os.Open(args[0])
	if err != nil {
		return a.fail(err)
	}
	defer f.Close()
	url, err := a.client.UploadImage(ctx, args[0], f)
	if err != nil {
		return a.fail(err)
	}
	fmt.Fprintln(a.stdout, url)
	return 0
}

func cmdOrders(ctx context.Context, a *app, args []string) int {
	return subcommand(ctx, a, "orders", args, map[string]command{
		"create":   ordersCreate,
		"show":     ordersShow,
		"mine":     ordersList("/purchases", orders.Purchases),
		"sales":    ordersList("/orders", orders.Sales),
		"pay":      ordersPay,
		"ship":     ordersAct(domain.ActionShip),
		"complete": ordersAct(domain.ActionComplete),
		"cancel":   ordersAct(domain.ActionCancel),
	})
}

func ordersCreate(ctx context.Context, a *app, args []string) int {
	fs := newFlags("orders create", a)
	productID := fs.Int64("product", 0, "product id")
	qty := fs.Int("qty", 1, "quantity")
	remark := fs.String("remark", "", "note for the seller")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if !a.enter("/orders") {
		return 1
	}
	p, err := a.client.Product(ctx, *productID)
	if err != nil {
		return a.fail(err)
	}
	q := a.orders.Quote(p, *qty)
	fmt.Fprintf(a.stderr, "estimated total %.2f\n", q.Total)
	o, err := a.orders.Create(ctx, p, *qty, *remark)
	if err != nil {
		return a.fail(err)
	}
	a.client.Notifier().Success("order " + o.OrderNo + " created")
	return a.print(o)
}

func ordersShow(ctx context.Context, a *app, args []string) int {
	fs := newFlags("orders show", a)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	id, ok := idArg(a, fs)
	if !ok {
		return 2
	}
	if !a.enter("/orders") {
		return 1
	}
	o, err := a.orders.Get(ctx, id)
	if err != nil {
		return a.fail(err)
	}
	return a.print(o)
}

func ordersList(dest string, role orders.Role) command {
	return func(ctx context.Context, a *app, args []string) int {
		fs := newFlags("orders list", a)
		status := fs.String("status", "", "status filter")
		pg := fs.Int("page", 1, "page")
		size := fs.Int("size", 10, "page size")
		if err := fs.Parse(args); err != nil {
			return 2
		}
		if !a.enter(dest) {
			return 1
		}
		v := orders.NewListView(a.orders, role, api.OrderQuery{Status: domain.OrderStatus(*status), Page: *pg, PageSize: *size})
		defer v.Close()
		if err := v.Refresh(ctx); err != nil {
			return a.fail(err)
		}
		rows := v.Snapshot()
		for _, r := range rows {
			o := r.Order
			fmt.Fprintf(a.stdout, "%5d  %-22s %-30s x%-3d %10.2f  %s\n", o.ID, o.OrderNo, o.ProductName, o.Quantity, o.TotalAmount, o.Status)
		}
		fmt.Fprintf(a.stdout, "page %d, %d of %d\n", *pg, len(rows), v.Total())
		return 0
	}
}

func ordersPay(ctx context.Context, a *app, args []string) int {
	fs := newFlags("orders pay", a)
	method := fs.String("method", "alipay", "alipay, wechat or balance")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	id, ok := idArg(a, fs)
	if !ok {
		return 2
	}
	if !a.enter("/payment/" + strconv.FormatInt(id, 10)) {
		return 1
	}
	o, err := a.orders.Get(ctx, id)
	if err != nil {
		return a.fail(err)
	}
	o, err = a.orders.Pay(ctx, o, *method)
	if err != nil {
		return a.fail(err)
	}
	a.client.Notifier().Success("payment recorded")
	return a.print(o)
}

func ordersAct(action domain.Action) command {
	return func(ctx context.Context, a *app, args []string) int {
		fs := newFlags("orders "+string(action), a)
		if err := fs.Parse(args); err != nil {
			return 2
		}
		id, ok := idArg(a, fs)
		if !ok {
			return 2
		}
		if !a.enter("/orders") {
			return 1
		}
		o, err := a.orders.Get(ctx, id)
		if err != nil {
			return a.fail(err)
		}
		o, err = a.orders.Apply(ctx, o, action, "")
		if err != nil {
			return a.fail(err)
		}
		a.client.Notifier().Success("order " + string(o.Status))
		return a.print(o)
	}
}
