package parser

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/runningman84/replica-monitor/pkg/models"
)

func TestParseExports_WalletCanister(t *testing.T) {
	raw := `ExportedFunctions { exported_functions: {Update("add_address"), Update("add_controller"), Update("authorize"), Update("deauthorize"), Update("remove_address"), Update("remove_controller"), Update("set_name"), Update("set_short_name"), Update("wallet_call"), Update("wallet_call128"), Update("wallet_create_canister"), Update("wallet_create_canister128"), Update("wallet_create_wallet"), Update("wallet_create_wallet128"), Update("wallet_receive"), Update("wallet_send"), Update("wallet_send128"), Update("wallet_store_wallet_wasm"), Query("get_chart"), Query("get_controllers"), Query("get_custodians"), Query("get_events"), Query("get_events128"), Query("get_managed_canister_events"), Query("get_managed_canister_events128"), Query("http_request"), Query("list_addresses"), Query("list_managed_canisters"), Query("name"), Query("wallet_api_version"), Query("wallet_balance"), Query("wallet_balance128"), System(CanisterInit), System(CanisterPreUpgrade), System(CanisterPostUpgrade)}, exports_heartbeat: false, exports_global_timer: false }`

	want := models.ExportsDescriptor{
		QueryFunctions: []string{
			"get_chart", "get_controllers", "get_custodians", "get_events", "get_events128",
			"get_managed_canister_events", "get_managed_canister_events128", "http_request",
			"list_addresses", "list_managed_canisters", "name", "wallet_api_version",
			"wallet_balance", "wallet_balance128",
		},
		UpdateFunctions: []string{
			"add_address", "add_controller", "authorize", "deauthorize", "remove_address",
			"remove_controller", "set_name", "set_short_name", "wallet_call", "wallet_call128",
			"wallet_create_canister", "wallet_create_canister128", "wallet_create_wallet",
			"wallet_create_wallet128", "wallet_receive", "wallet_send", "wallet_send128",
			"wallet_store_wallet_wasm",
		},
		SystemFunctions: []string{"CanisterInit", "CanisterPreUpgrade", "CanisterPostUpgrade"},
	}

	got, err := ParseExports(raw)
	if err != nil {
		t.Fatalf("ParseExports() error = %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseExports() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseExports(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want models.ExportsDescriptor
	}{
		{
			name: "order preserved within each category",
			raw:  `exported_functions: {Update("a"), Query("b"), Update("c")}, exports_heartbeat: false, exports_global_timer: false`,
			want: models.ExportsDescriptor{
				QueryFunctions:  []string{"b"},
				UpdateFunctions: []string{"a", "c"},
			},
		},
		{
			name: "bare item set without labels",
			raw:  `{Query("greet"), System(CanisterInit)}, exports_heartbeat: true, exports_global_timer: true`,
			want: models.ExportsDescriptor{
				QueryFunctions:     []string{"greet"},
				SystemFunctions:    []string{"CanisterInit"},
				ExportsHeartbeat:   true,
				ExportsGlobalTimer: true,
			},
		},
		{
			name: "empty item set",
			raw:  `ExportedFunctions { exported_functions: {}, exports_heartbeat: false, exports_global_timer: false }`,
			want: models.ExportsDescriptor{},
		},
		{
			name: "missing item set",
			raw:  `ExportedFunctions { exports_heartbeat: true, exports_global_timer: false }`,
			want: models.ExportsDescriptor{ExportsHeartbeat: true},
		},
		{
			name: "unterminated item set yields no items",
			raw:  `ExportedFunctions { exported_functions: {Query("a"), Query("b")`,
			want: models.ExportsDescriptor{},
		},
		{
			name: "unknown heartbeat token is false",
			raw:  `exported_functions: {}, exports_heartbeat: maybe, exports_global_timer: true }`,
			want: models.ExportsDescriptor{ExportsGlobalTimer: true},
		},
		{
			name: "heartbeat without following comma is false",
			raw:  `exported_functions: {Update("x")}, exports_heartbeat: true`,
			want: models.ExportsDescriptor{UpdateFunctions: []string{"x"}},
		},
		{
			name: "missing global timer label defaults to false",
			raw:  `{Query("a")}, exports_heartbeat: true,`,
			want: models.ExportsDescriptor{
				QueryFunctions:   []string{"a"},
				ExportsHeartbeat: true,
			},
		},
		{
			name: "malformed items are skipped",
			raw:  `{Query("a"), Broken, Update(, Query("b")}, exports_global_timer: false`,
			want: models.ExportsDescriptor{QueryFunctions: []string{"a", "b"}},
		},
		{
			name: "malformed first item does not hide the rest",
			raw:  `ExportedFunctions { exported_functions: {Broken, Query("a"), Update("b")}, exports_heartbeat: false, exports_global_timer: false }`,
			want: models.ExportsDescriptor{
				QueryFunctions:  []string{"a"},
				UpdateFunctions: []string{"b"},
			},
		},
		{
			name: "bare item set with malformed first item",
			raw:  `{Broken, System(CanisterInit)}, exports_global_timer: true`,
			want: models.ExportsDescriptor{
				SystemFunctions:    []string{"CanisterInit"},
				ExportsGlobalTimer: true,
			},
		},
		{
			name: "heartbeat without comma leaves global timer readable",
			raw:  `exported_functions: {Query("a")}, exports_heartbeat: true exports_global_timer: true }`,
			want: models.ExportsDescriptor{
				QueryFunctions:     []string{"a"},
				ExportsGlobalTimer: true,
			},
		},
		{
			name: "unknown tags are ignored",
			raw:  `{Composite("x"), Query("y")}, exports_global_timer: false`,
			want: models.ExportsDescriptor{QueryFunctions: []string{"y"}},
		},
		{
			name: "quoted system name",
			raw:  `{System("CanisterInit")}`,
			want: models.ExportsDescriptor{SystemFunctions: []string{"CanisterInit"}},
		},
		{
			name: "quoted names keep embedded commas",
			raw:  `{Query("a,b"), Update("c")}`,
			want: models.ExportsDescriptor{
				QueryFunctions:  []string{"a,b"},
				UpdateFunctions: []string{"c"},
			},
		},
		{
			name: "labels without spaces",
			raw:  `ExportedFunctions{exported_functions:{Query("q")},exports_heartbeat:true,exports_global_timer:true}`,
			want: models.ExportsDescriptor{
				QueryFunctions:     []string{"q"},
				ExportsHeartbeat:   true,
				ExportsGlobalTimer: true,
			},
		},
		{
			name: "empty input",
			raw:  "",
			want: models.ExportsDescriptor{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseExports(tt.raw)
			if err != nil {
				t.Fatalf("ParseExports() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseExports() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseExports_InvalidGlobalTimer(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{
			name: "unknown token",
			raw:  `ExportedFunctions { exported_functions: {Query("a")}, exports_heartbeat: false, exports_global_timer: maybe }`,
		},
		{
			name: "empty value",
			raw:  `exported_functions: {Query("a")}, exports_heartbeat: false, exports_global_timer: }`,
		},
		{
			name: "after heartbeat without comma",
			raw:  `ExportedFunctions { exported_functions: {Query("a")}, exports_heartbeat: true exports_global_timer: maybe }`,
		},
		{
			name: "trailing field after value",
			raw:  `exported_functions: {}, exports_global_timer: true, extra: 1 }`,
		},
		{
			name: "quoted token",
			raw:  `exported_functions: {}, exports_global_timer: "true"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseExports(tt.raw)
			if err == nil {
				t.Fatalf("ParseExports() expected error, got %+v", got)
			}
			if !errors.Is(err, ErrInvalidGlobalTimer) {
				t.Errorf("ParseExports() error = %v, want ErrInvalidGlobalTimer", err)
			}
			if !got.IsZero() {
				t.Errorf("ParseExports() = %+v, want zero descriptor on error", got)
			}
		})
	}
}

func TestLex(t *testing.T) {
	got := lex(`Shell { f: {Query("a b")}, g:true }`)
	want := []token{
		{kind: tokWord, text: "Shell"},
		{kind: tokLBrace, text: "{"},
		{kind: tokWord, text: "f"},
		{kind: tokColon, text: ":"},
		{kind: tokLBrace, text: "{"},
		{kind: tokWord, text: "Query"},
		{kind: tokLParen, text: "("},
		{kind: tokString, text: "a b"},
		{kind: tokRParen, text: ")"},
		{kind: tokRBrace, text: "}"},
		{kind: tokComma, text: ","},
		{kind: tokWord, text: "g"},
		{kind: tokColon, text: ":"},
		{kind: tokWord, text: "true"},
		{kind: tokRBrace, text: "}"},
	}

	if diff := cmp.Diff(want, got, cmp.AllowUnexported(token{})); diff != "" {
		t.Errorf("lex() mismatch (-want +got):\n%s", diff)
	}
}

func TestLex_UnterminatedString(t *testing.T) {
	got := lex(`Query("abc`)
	if len(got) != 3 {
		t.Fatalf("lex() returned %d tokens, want 3", len(got))
	}
	if got[2].kind != tokString || got[2].text != "abc" {
		t.Errorf("lex() last token = %+v, want string abc", got[2])
	}
}
