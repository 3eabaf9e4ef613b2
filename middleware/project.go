package middleware

import (
	"bytes"
	"encoding/json"
	"mime"
	"net/http"
	"strconv"

	portalAuth "github.com/MrEthical07/portalAuth"
	"github.com/MrEthical07/portalAuth/fields"
	"github.com/MrEthical07/portalAuth/permission"
	"github.com/MrEthical07/portalAuth/session"
)

// ProjectFields filters successful JSON answers through policy for the
// role of the session on the request context. An enveloped answer
// ({"success": ..., "data": ...}) has only its data projected, and a paged
// list ({"items": [...], "total": ...}) only its items. Without a session,
// or for a role the policy does not declare, records come back empty.
// Mount it on record endpoints only; other answers would be projected as
// records too.
func ProjectFields(policy *fields.Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &bufferedResponse{header: http.Header{}, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			body := rec.body.Bytes()
			if rec.status >= 200 && rec.status < 300 && isJSON(rec.header.Get("Content-Type")) && len(bytes.TrimSpace(body)) > 0 {
				state, _ := portalAuth.StateFromContext(r.Context())
				projected, err := project(policy, roleOf(policy, state), body)
				if err != nil {
					writeDetail(w, http.StatusBadGateway, "unexpected upstream answer")
					return
				}
				body = projected
			}

			for k, v := range rec.header {
				w.Header()[k] = v
			}
			w.Header().Set("Content-Length", strconv.Itoa(len(body)))
			w.WriteHeader(rec.status)
			_, _ = w.Write(body)
		})
	}
}

func roleOf(policy *fields.Policy, state session.State) permission.Role {
	if state == nil {
		return 0
	}
	active, ok := state.Active()
	if !ok {
		return 0
	}
	user := active.User()
	roles := []permission.Role{user.Role}
	for _, rr := range active.Roles() {
		roles = append(roles, rr.Name)
	}
	role, _ := policy.Role(roles...)
	return role
}

func project(policy *fields.Policy, role permission.Role, body []byte) ([]byte, error) {
	var env map[string]json.RawMessage
	if err := json.Unmarshal(body, &env); err == nil {
		data, hasData := env["data"]
		_, hasSuccess := env["success"]
		if hasData && hasSuccess {
			filtered, err := projectData(policy, role, data)
			if err != nil {
				return nil, err
			}
			env["data"] = filtered
			return json.Marshal(env)
		}
		if out, ok, err := projectPage(policy, role, env); ok {
			return out, err
		}
	}
	return policy.FilterJSON(body, role)
}

// projectData projects an envelope's data member. Scalars and null pass
// through untouched.
func projectData(policy *fields.Policy, role permission.Role, data json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return data, nil
	}
	switch trimmed[0] {
	case '[':
		return policy.FilterJSON(trimmed, role)
	case '{':
		var page map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &page); err != nil {
			return nil, err
		}
		if out, ok, err := projectPage(policy, role, page); ok {
			return out, err
		}
		return policy.FilterJSON(trimmed, role)
	default:
		return data, nil
	}
}

// projectPage handles a paged list ({"items": [...], "total": ...}): the
// items are projected and the paging members are kept. ok is false when
// obj is not a page.
func projectPage(policy *fields.Policy, role permission.Role, obj map[string]json.RawMessage) (out []byte, ok bool, err error) {
	items, found := obj["items"]
	if !found {
		return nil, false, nil
	}
	trimmed := bytes.TrimSpace(items)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, false, nil
	}
	filtered, err := policy.FilterJSON(trimmed, role)
	if err != nil {
		return nil, true, err
	}
	obj["items"] = filtered
	out, err = json.Marshal(obj)
	return out, true, err
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == "application/json"
}

type bufferedResponse struct {
	header http.Header
	status int
	body   bytes.Buffer
	wrote  bool
}

func (b *bufferedResponse) Header() http.Header { return b.header }

func (b *bufferedResponse) WriteHeader(status int) {
	if b.wrote {
		return
	}
	b.status, b.wrote = status, true
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	b.wrote = true
	return b.body.Write(p)
}
