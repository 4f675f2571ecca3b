package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/taskapp/taskstream/internal/client/rest"
	"github.com/taskapp/taskstream/internal/client/session"
	"github.com/taskapp/taskstream/internal/client/stream"
	"github.com/taskapp/taskstream/internal/client/taskcache"
	"github.com/taskapp/taskstream/internal/client/token"
	"github.com/taskapp/taskstream/internal/core/domain"
	"github.com/taskapp/taskstream/internal/infrastructure/config"
	"github.com/taskapp/taskstream/pkg/logger"
)

// consoleNavigator maps the app's routes onto terminal output. The guard
// drives it exactly like it would drive a view router.
type consoleNavigator struct {
	route string
}

func (n *consoleNavigator) Current() string { return n.route }

func (n *consoleNavigator) Go(route string) {
	n.route = route
	switch route {
	case session.RouteLogin:
		fmt.Println("-> session ended, please log in (login <user> <pass>)")
	case session.RouteTasks:
		fmt.Println("-> signed in")
	}
}

func main() {
	cfg := config.LoadClient()

	log := logger.Init(logger.Options{Level: cfg.LogLevel})

	kv, err := session.NewFileKV(cfg.SessionFile)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.SessionFile).Msg("session file unusable")
	}

	codec := &token.Codec{}
	store := session.NewStore(kv, codec, log)
	nav := &consoleNavigator{route: session.RouteLogin}

	// The guard and the REST client reference each other: the guard asks
	// the client to refresh tokens, the client tells the guard when the
	// server rejects the session.
	var guard *session.Guard
	api := rest.NewClient(rest.Config{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.RequestTimeout,
	}, store, func() {
		if guard != nil {
			guard.StoreChanged(session.TokenKey)
		}
	}, log)

	guard = session.NewGuard(store, codec, nav, api, session.GuardConfig{
		CheckInterval: cfg.CheckInterval,
		RefreshWithin: cfg.RefreshWithin,
	}, log)
	defer guard.Close()

	cache := taskcache.NewCache(api, log)

	ctx := context.Background()

	push := stream.NewClient(guard, stream.Config{
		URL:            cfg.StreamURL,
		ReconnectDelay: cfg.ReconnectDelay,
	}, func() {
		cache.OnExternalChange(ctx)
		fmt.Println("(task list updated, run 'list' to see it)")
	}, log)
	defer push.Close()

	guard.Initialize()
	if guard.IsAuthenticated() {
		push.Connect()
		if err := cache.FetchAll(ctx); err != nil {
			fmt.Println("could not load tasks:", err)
		}
	}

	fmt.Println("taskstream client. Type 'help' for commands.")
	repl(ctx, guard, api, cache, push)
}

func repl(ctx context.Context, guard *session.Guard, api *rest.Client, cache *taskcache.Cache, push *stream.Client) {
	in := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !in.Scan() {
			return
		}
		args := strings.Fields(in.Text())
		if len(args) == 0 {
			continue
		}

		switch args[0] {
		case "help":
			printHelp()
		case "login":
			if len(args) != 3 {
				fmt.Println("usage: login <username> <password>")
				continue
			}
			doLogin(ctx, guard, api, cache, push, args[1], args[2])
		case "register":
			if len(args) != 4 {
				fmt.Println("usage: register <username> <email> <password>")
				continue
			}
			doRegister(ctx, guard, api, cache, push, args[1], args[2], args[3])
		case "list":
			for _, t := range cache.Tasks() {
				fmt.Printf("  #%d [%s/%s] %s (by %s", t.ID, t.Status, t.Priority, t.Title, t.CreatedByUsername)
				if t.AssignedToUsername != "" {
					fmt.Printf(", for %s", t.AssignedToUsername)
				}
				fmt.Println(")")
			}
			if msg := cache.Err(); msg != "" {
				fmt.Println("  last error:", msg)
			}
		case "create":
			if len(args) < 2 {
				fmt.Println("usage: create <title words...>")
				continue
			}
			t, err := cache.Create(ctx, rest.CreateTaskInput{Title: strings.Join(args[1:], " ")})
			if err != nil {
				fmt.Println("create failed:", err)
				continue
			}
			fmt.Printf("created #%d\n", t.ID)
		case "done":
			doStatusChange(ctx, api, cache, args, "COMPLETED")
		case "start":
			doStatusChange(ctx, api, cache, args, "IN_PROGRESS")
		case "rm":
			if len(args) != 2 {
				fmt.Println("usage: rm <id>")
				continue
			}
			id, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				fmt.Println("bad task id:", args[1])
				continue
			}
			if err := cache.Remove(ctx, id); err != nil {
				fmt.Println("delete failed:", err)
			}
		case "users":
			users, err := api.ListUsers(ctx)
			if err != nil {
				fmt.Println("list users failed:", err)
				continue
			}
			for _, u := range users {
				fmt.Printf("  #%d %s <%s>\n", u.ID, u.Username, u.Email)
			}
		case "status":
			if u := guard.User(); u != nil {
				fmt.Printf("signed in as %s, stream %s\n", u.Username, push.CurrentState())
			} else {
				fmt.Println("not signed in")
			}
		case "logout":
			push.Disconnect()
			guard.Logout()
		case "quit", "exit":
			return
		default:
			fmt.Println("unknown command, try 'help'")
		}
	}
}

func doLogin(ctx context.Context, guard *session.Guard, api *rest.Client, cache *taskcache.Cache, push *stream.Client, user, pass string) {
	res, err := api.Login(ctx, user, pass)
	if err != nil {
		fmt.Println("login failed:", err)
		return
	}
	if err := guard.Login(res.Token, res.User); err != nil {
		if errors.Is(err, session.ErrInvalidAuthPayload) {
			fmt.Println("server returned an unusable session, try again")
			return
		}
		fmt.Println("login failed:", err)
		return
	}
	afterAuth(ctx, cache, push)
}

func doRegister(ctx context.Context, guard *session.Guard, api *rest.Client, cache *taskcache.Cache, push *stream.Client, user, email, pass string) {
	res, err := api.Register(ctx, user, email, pass)
	if err != nil {
		fmt.Println("registration failed:", err)
		return
	}
	if err := guard.Login(res.Token, res.User); err != nil {
		fmt.Println("registration succeeded but session is unusable:", err)
		return
	}
	afterAuth(ctx, cache, push)
}

func afterAuth(ctx context.Context, cache *taskcache.Cache, push *stream.Client) {
	push.Connect()
	if err := cache.FetchAll(ctx); err != nil {
		fmt.Println("could not load tasks:", err)
	}
}

func doStatusChange(ctx context.Context, api *rest.Client, cache *taskcache.Cache, args []string, status string) {
	if len(args) != 2 {
		fmt.Printf("usage: %s <id>\n", args[0])
		return
	}
	id, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		fmt.Println("bad task id:", args[1])
		return
	}
	var title, desc string
	var assigned int64
	var priority domain.TaskPriority
	for _, t := range cache.Tasks() {
		if t.ID == id {
			title, desc, assigned = t.Title, t.Description, t.AssignedToID
			priority = t.Priority
			break
		}
	}
	if title == "" {
		fmt.Println("unknown task:", args[1])
		return
	}
	if _, err := api.UpdateTask(ctx, id, rest.UpdateTaskInput{
		Title:       title,
		Description: desc,
		Status:      status,
		Priority:    string(priority),
		AssignedTo:  assigned,
	}); err != nil {
		fmt.Println("update failed:", err)
		return
	}
	_ = cache.FetchAll(ctx)
}

func printHelp() {
	fmt.Println(`commands:
  login <user> <pass>              sign in
  register <user> <email> <pass>   create an account and sign in
  list                             show cached tasks
  create <title...>                create a task
  start <id> | done <id>           move a task through its lifecycle
  rm <id>                          delete a task you created
  users                            list known users
  status                           session and stream state
  logout                           end the session
  quit                             exit`)
}
