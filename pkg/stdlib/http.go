package stdlib

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpproxy"

	"github.com/lemonberrylabs/bigrun/pkg/token"
	"github.com/lemonberrylabs/bigrun/pkg/types"
)

// DefaultHTTPTimeout bounds one request made by a script.
const DefaultHTTPTimeout = 30 * time.Second

// maxRedirects is how many redirects a GET follows.
const maxRedirects = 8

// netErrPrefix starts every failure text the network verbs return. Such a
// result also raises a bug.
const netErrPrefix = "BigNet Error"

// netClient is the HTTP client behind "get web" and "get post". Its
// user agent, proxy and default headers are set by script statements.
type netClient struct {
	mu        sync.Mutex
	client    *fasthttp.Client
	userAgent string
	proxy     string
	headers   map[string]string
}

// RegisterNet registers the network verbs against client. This is separate
// so tests can point the verbs at a custom client; nil uses a default one.
func (r *Registry) RegisterNet(client *fasthttp.Client) {
	if client == nil {
		client = &fasthttp.Client{
			ReadTimeout:  DefaultHTTPTimeout,
			WriteTimeout: DefaultHTTPTimeout,
		}
	}
	r.net = &netClient{client: client, headers: make(map[string]string)}

	r.Register(token.UserAgent, r.netUserAgent)
	r.Register(token.Proxy, r.netProxy)
	r.Register(token.Header, r.netHeader)
	r.Register(token.Look, r.look)
}

// netUserAgent sets the User-Agent of later requests: user-agent "UA".
func (r *Registry) netUserAgent(h types.Host, i *int, toks []token.Token) {
	ua, end := text(h, toks, *i+1)
	r.net.mu.Lock()
	r.net.userAgent = ua
	r.net.mu.Unlock()
	*i = end
}

// netProxy routes later requests through a proxy: proxy "host:port". A
// socks5:// address uses a SOCKS dialer.
func (r *Registry) netProxy(h types.Host, i *int, toks []token.Token) {
	addr, end := text(h, toks, *i+1)
	*i = end
	r.net.mu.Lock()
	defer r.net.mu.Unlock()
	r.net.proxy = addr
	switch {
	case addr == "":
		r.net.client.Dial = nil
	case strings.HasPrefix(addr, "socks5://"):
		r.net.client.Dial = fasthttpproxy.FasthttpSocksDialer(addr)
	default:
		addr = strings.TrimPrefix(strings.TrimPrefix(addr, "http://"), "https://")
		r.net.client.Dial = fasthttpproxy.FasthttpHTTPDialer(addr)
	}
}

// netHeader adds a default request header: header "K" "V".
func (r *Registry) netHeader(h types.Host, i *int, toks []token.Token) {
	key, end := text(h, toks, *i+1)
	val, end := text(h, toks, end+1)
	r.net.mu.Lock()
	r.net.headers[key] = val
	r.net.mu.Unlock()
	*i = end
}

// Get fetches url and returns the body, or a BigNet Error text.
func (n *netClient) Get(url string) string {
	return n.do(fasthttp.MethodGet, url, "")
}

// Post sends data to url. Without an explicit Content-Type header the body
// is sent as a form.
func (n *netClient) Post(url, data string) string {
	return n.do(fasthttp.MethodPost, url, data)
}

func (n *netClient) do(method, url, data string) string {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(method)

	n.mu.Lock()
	if n.userAgent != "" {
		req.Header.SetUserAgent(n.userAgent)
	}
	hasType := false
	for k, v := range n.headers {
		req.Header.Set(k, v)
		if strings.EqualFold(k, "Content-Type") {
			hasType = true
		}
	}
	client := n.client
	n.mu.Unlock()

	var err error
	if method == fasthttp.MethodPost {
		if !hasType {
			req.Header.SetContentType("application/x-www-form-urlencoded")
		}
		req.SetBodyString(data)
		err = client.DoTimeout(req, resp, DefaultHTTPTimeout)
	} else {
		err = client.DoRedirects(req, resp, maxRedirects)
	}
	if err != nil {
		return fmt.Sprintf("%s: Request Failed. %v", netErrPrefix, err)
	}
	body, err := resp.BodyUncompressed()
	if err != nil {
		return fmt.Sprintf("%s: Bad Response Text. %v", netErrPrefix, err)
	}
	return string(body)
}

// netResult raises a bug for failure texts and returns resp unchanged.
func netResult(h types.Host, resp string) string {
	if strings.HasPrefix(resp, netErrPrefix) {
		h.RaiseBug(resp)
	}
	return resp
}

// getWeb handles "get web URL & set as {Page}" with toks[j] on "web".
func (r *Registry) getWeb(h types.Host, i *int, toks []token.Token, j int) {
	url, end := text(h, toks, j+1)
	bind(h, i, toks, end, netResult(h, r.net.Get(url)))
}

// getPost handles "get post URL [with] DATA & set as {Resp}" with toks[j]
// on "post".
func (r *Registry) getPost(h types.Host, i *int, toks []token.Token, j int) {
	url, end := text(h, toks, j+1)
	if peek(toks, end+1).Kind == token.With {
		end++
	}
	data, end := text(h, toks, end+1)
	bind(h, i, toks, end, netResult(h, r.net.Post(url, data)))
}

// look extracts values from HTML or JSON text:
// look [for] [json] [in] "sel" ... @{Source} & set as {A} ...
// A selector of "all" returns the whole source.
func (r *Registry) look(h types.Host, i *int, toks []token.Token) {
	j := *i + 1
	if peek(toks, j).Kind == token.For {
		j++
	}
	isJSON := false
	for k := peek(toks, j).Kind; k == token.Json || k == token.In; k = peek(toks, j).Kind {
		if k == token.Json {
			isJSON = true
		}
		j++
	}
	var selectors []string
	for ; onLine(toks, *i, j) && toks[j].Kind != token.At; j++ {
		selectors = append(selectors, h.Interpolate(h.TokenValue(toks[j])))
	}
	source, end, ok := atValue(h, toks, j)
	if !ok {
		abandon(i, toks)
		return
	}

	results := make([]string, 0, len(selectors))
	for _, sel := range selectors {
		switch {
		case sel == "all":
			results = append(results, source)
		case isJSON:
			results = append(results, lookJSON(h, sel, source))
		default:
			results = append(results, lookHTML(sel, source))
		}
	}
	bind(h, i, toks, end, results...)
}

// lookJSON returns the top-level field key of a JSON object, or "".
func lookJSON(h types.Host, key, src string) string {
	m, ok := types.DecodeMap(strings.TrimSpace(src))
	if !ok {
		fmt.Fprintln(h.Stdout(), netErrPrefix+": JSON Parse Failed.")
		return ""
	}
	v, ok := m[key]
	if !ok {
		return ""
	}
	return types.Render(v)
}
