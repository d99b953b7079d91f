// Package main is the learner storefront client: course catalog, guest cart
// and enrollments, login-backed checkout, and the live push channel.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/courseflow/courseflow/internal/client/api"
	"github.com/courseflow/courseflow/internal/client/device"
	"github.com/courseflow/courseflow/internal/client/notify"
	"github.com/courseflow/courseflow/internal/client/realtime"
	"github.com/courseflow/courseflow/internal/client/session"
	"github.com/courseflow/courseflow/internal/client/store"
	"github.com/courseflow/courseflow/internal/config"
	"github.com/courseflow/courseflow/internal/logger"
	"github.com/courseflow/courseflow/internal/models"
)

const appName = "learner"

var (
	version   string
	buildDate string
)

// app bundles the wired components for the REPL.
type app struct {
	sessions *session.Manager
	apiC     *api.Client
	commerce *store.Commerce
	push     *realtime.Service
	log      *zap.Logger
}

func main() {
	cfg := config.MustLoad()

	var (
		baseURL string
		debug   bool
		showVer bool
	)
	flag.StringVar(&baseURL, "url", cfg.API.BaseURL, "REST backend base URL")
	flag.BoolVar(&debug, "debug", cfg.App.Debug, "verbose logging")
	flag.BoolVar(&showVer, "version", false, "show build version and date")
	flag.Parse()
	cfg.API.BaseURL = baseURL

	if showVer {
		fmt.Printf("courseflow learner\nVersion: %s\nBuild Date: %s\n", version, buildDate)
		return
	}

	log, err := logger.New(debug)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to init logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.Open(cfg.Store.FilePath(appName))
	if err != nil {
		log.Fatal("failed to open local store", zap.Error(err))
	}
	st.StartWatch(ctx, cfg.Store.WatchInterval, log)

	sessions := store.NewSessions(st)
	apiC := api.New(cfg.API.BaseURL, cfg.API.Timeout, sessions.Token)
	notifier := notify.NewConsole(log)

	mgr := session.NewManager(session.Options{
		API:                apiC,
		Storage:            sessions,
		Device:             device.New(appName, cfg.App.Version),
		Logger:             log,
		Interval:           cfg.Session.ValidateInterval,
		MaxNetworkFailures: cfg.Session.MaxNetworkFailures,
	})
	defer mgr.Close()
	mgr.OnExpired(func() {
		fmt.Println("Your session has expired. Please log in again.")
	})

	hb := cfg.Realtime.HeartbeatInterval
	if !cfg.Realtime.HeartbeatEnabled {
		hb = 0
	}
	push := realtime.NewService(realtime.Options{
		URL:               cfg.Realtime.URL,
		Token:             sessions.Token,
		Notifier:          notifier,
		Logger:            log,
		ReconnectAttempts: cfg.Realtime.ReconnectAttempts,
		ReconnectDelay:    cfg.Realtime.ReconnectDelay,
		HeartbeatInterval: hb,
	})
	defer push.Disconnect()

	a := &app{
		sessions: mgr,
		apiC:     apiC,
		commerce: store.NewCommerce(st),
		push:     push,
		log:      log,
	}

	if mgr.Resume() {
		if info, ok := sessions.Session(); ok {
			push.Connect(ctx, info.UserID, info.Role)
			fmt.Printf("Welcome back (%s)\n", info.UserID)
		}
	}
	a.repl(ctx, sessions)
}

// repl runs the interactive shell loop.
func (a *app) repl(ctx context.Context, sessions *store.Sessions) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("courseflow> ")
		if !scanner.Scan() {
			break
		}
		args := strings.Fields(strings.TrimSpace(scanner.Text()))
		if len(args) == 0 {
			continue
		}
		switch args[0] {
		case "help":
			fmt.Println("Available commands: help, courses, cart, add <id>, remove <id>, clear,")
			fmt.Println("  checkout, enrollments, complete <courseId> <lessonId>,")
			fmt.Println("  login <email> <password>, logout, register <name> <email> <password>,")
			fmt.Println("  dashboard, exit")
		case "courses":
			a.listCourses(ctx)
		case "cart":
			a.showCart(ctx)
		case "add":
			if len(args) < 2 {
				fmt.Println("Usage: add <courseId>")
				continue
			}
			a.addToCart(ctx, args[1])
		case "remove":
			if len(args) < 2 {
				fmt.Println("Usage: remove <courseId>")
				continue
			}
			a.removeFromCart(ctx, args[1])
		case "clear":
			a.clearCart(ctx)
		case "checkout":
			a.checkout(ctx)
		case "enrollments":
			a.listEnrollments(ctx)
		case "complete":
			if len(args) < 3 {
				fmt.Println("Usage: complete <courseId> <lessonId>")
				continue
			}
			a.completeLesson(ctx, args[1], args[2])
		case "login":
			if len(args) < 3 {
				fmt.Println("Usage: login <email> <password>")
				continue
			}
			a.login(ctx, sessions, args[1], args[2], scanner)
		case "logout":
			a.push.Disconnect()
			a.sessions.Logout(ctx)
			fmt.Println("Logged out")
		case "register":
			if len(args) < 4 {
				fmt.Println("Usage: register <name> <email> <password>")
				continue
			}
			if err := a.apiC.Register(ctx, api.RegisterRequest{Name: args[1], Email: args[2], Password: args[3]}); err != nil {
				fmt.Println("Registration failed:", err)
			} else {
				fmt.Println("Registered, you can log in now")
			}
		case "dashboard":
			stats, err := a.apiC.UserDashboard(ctx)
			if err != nil {
				fmt.Println("Dashboard unavailable:", err)
				continue
			}
			fmt.Printf("Enrollments: %d  Courses: %d\n", stats.Enrollments, stats.TotalCourses)
		case "exit":
			fmt.Println("Bye")
			return
		default:
			fmt.Println("Unknown command. Type 'help' for a list of commands.")
		}
	}
}

// login authenticates, asking for confirmation when another session is
// active and retrying the same call with the force flag.
func (a *app) login(ctx context.Context, sessions *store.Sessions, email, password string, scanner *bufio.Scanner) {
	err := a.sessions.Login(ctx, email, password, false)
	if errors.Is(err, api.ErrActiveSession) {
		fmt.Print("Another session is active. Log out the other device? (y/n): ")
		if !scanner.Scan() || strings.TrimSpace(scanner.Text()) != "y" {
			fmt.Println("Login cancelled")
			return
		}
		err = a.sessions.Login(ctx, email, password, true)
	}
	if err != nil {
		fmt.Println("Login failed:", err)
		return
	}
	fmt.Println("Logged in")
	if info, ok := sessions.Session(); ok {
		a.push.Connect(ctx, info.UserID, info.Role)
	}
}

func (a *app) listCourses(ctx context.Context) {
	courses, err := a.apiC.Courses(ctx)
	if err != nil {
		fmt.Println("Failed to load catalog:", err)
		return
	}
	for _, c := range courses {
		fmt.Printf("%-12s %-30s $%.2f (%d lessons)\n", c.ID, c.Title, c.Price, c.LessonCount)
	}
}

func (a *app) showCart(ctx context.Context) {
	if a.sessions.LoggedIn() {
		items, err := a.apiC.Cart(ctx)
		if err != nil {
			fmt.Println("Failed to load cart:", err)
			return
		}
		printCart(items)
		return
	}
	items, err := a.commerce.Cart()
	if err != nil {
		fmt.Println("Failed to load cart:", err)
		return
	}
	printCart(items)
}

func printCart(items []models.CartItem) {
	if len(items) == 0 {
		fmt.Println("Cart is empty")
		return
	}
	var total float64
	for _, it := range items {
		fmt.Printf("%-12s %-30s $%.2f\n", it.CourseID, it.Title, it.Price)
		total += it.Price
	}
	fmt.Printf("Total: $%.2f\n", total)
}

func (a *app) addToCart(ctx context.Context, courseID string) {
	if a.sessions.LoggedIn() {
		if err := a.apiC.AddToCart(ctx, courseID); err != nil {
			fmt.Println("Failed to add to cart:", err)
		}
		return
	}
	course, err := a.apiC.Course(ctx, courseID)
	if err != nil {
		fmt.Println("Course not found:", err)
		return
	}
	if err := a.commerce.AddToCart(*course); err != nil {
		fmt.Println("Failed to add to cart:", err)
	}
}

func (a *app) removeFromCart(ctx context.Context, courseID string) {
	if a.sessions.LoggedIn() {
		if err := a.apiC.RemoveFromCart(ctx, courseID); err != nil {
			fmt.Println("Failed to remove from cart:", err)
		}
		return
	}
	if err := a.commerce.RemoveFromCart(courseID); err != nil {
		fmt.Println("Failed to remove from cart:", err)
	}
}

func (a *app) clearCart(ctx context.Context) {
	if a.sessions.LoggedIn() {
		if err := a.apiC.ClearCart(ctx); err != nil {
			fmt.Println("Failed to clear cart:", err)
		}
		return
	}
	if err := a.commerce.ClearCart(); err != nil {
		fmt.Println("Failed to clear cart:", err)
	}
}

func (a *app) checkout(ctx context.Context) {
	if a.sessions.LoggedIn() {
		payment, err := a.apiC.Checkout(ctx)
		if err != nil {
			fmt.Println("Checkout failed:", err)
			return
		}
		fmt.Printf("Payment %s: $%.2f (%s)\n", payment.ID, payment.Amount, payment.Status)
		return
	}

	// guest checkout stays entirely client side
	catalog := make(map[string]models.Course)
	if courses, err := a.apiC.Courses(ctx); err == nil {
		for _, c := range courses {
			catalog[c.ID] = c
		}
	}
	created, err := a.commerce.Checkout(catalog)
	if err != nil {
		fmt.Println("Checkout failed:", err)
		return
	}
	fmt.Printf("Enrolled in %d course(s). Log in to keep them across devices.\n", len(created))
}

func (a *app) listEnrollments(ctx context.Context) {
	var (
		enrs []models.Enrollment
		err  error
	)
	if a.sessions.LoggedIn() {
		enrs, err = a.apiC.Enrollments(ctx)
	} else {
		enrs, err = a.commerce.Enrollments()
	}
	if err != nil {
		fmt.Println("Failed to load enrollments:", err)
		return
	}
	if len(enrs) == 0 {
		fmt.Println("No enrollments yet")
		return
	}
	for _, e := range enrs {
		fmt.Printf("%-12s %-30s %d%% (%d/%d lessons)\n",
			e.CourseID, e.Title, e.Progress, len(e.LessonsCompleted), e.LessonCount)
	}
}

func (a *app) completeLesson(ctx context.Context, courseID, lessonID string) {
	if a.sessions.LoggedIn() {
		if err := a.apiC.UpdateProgress(ctx, courseID, lessonID); err != nil {
			fmt.Println("Failed to save progress:", err)
			return
		}
		// mirror over the socket so dashboards refresh live
		if err := a.push.UpdateProgress(courseID, lessonID); err != nil {
			a.log.Debug("push progress skipped", zap.Error(err))
		}
		return
	}
	if err := a.commerce.CompleteLesson(courseID, lessonID); err != nil {
		fmt.Println("Failed to save progress:", err)
	}
}
