package routes

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"partnerledger/core"
	"partnerledger/gateway/middleware"
	"partnerledger/native/currency"
	"partnerledger/observability"
)

var errNoCaller = errors.New("request carries no caller address")

type ledgerRoutes struct {
	node   *core.Node
	events *observability.EventLog
}

func (lr *ledgerRoutes) mountReads(r chi.Router) {
	r.Get("/currencies", lr.listCurrencies)
	r.Get("/currencies/{currency}", lr.getCurrency)
	r.Get("/projects", lr.listProjects)
	r.Get("/projects/{project}/budget/{currency}", lr.getBudget)
	r.Get("/projects/{project}/fee-budget/{currency}", lr.getFeeBudget)
	r.Get("/projects/{project}/claimable/{recipient}/{currency}", lr.getClaimable)
	r.Get("/projects/{project}/totals/{currency}", lr.getTotals)
	r.Get("/pauses", lr.listPauses)
	if lr.events != nil {
		r.Get("/events", lr.listEvents)
	}
}

func caller(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	addr, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, errNoCaller)
	}
	return addr, ok
}

func pathAddress(w http.ResponseWriter, r *http.Request, name string) (common.Address, bool) {
	var (
		addr common.Address
		err  error
	)
	if name == "currency" {
		addr, err = parseCurrency(chi.URLParam(r, name))
	} else {
		addr, err = parseAddress(chi.URLParam(r, name))
	}
	if err != nil {
		writeBadRequest(w, err)
		return common.Address{}, false
	}
	return addr, true
}

func (lr *ledgerRoutes) listCurrencies(w http.ResponseWriter, r *http.Request) {
	list, err := lr.node.Currencies().Currencies(r.Context())
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	out := make([]currencyJSON, len(list))
	for i, c := range list {
		out[i] = currencyView(c)
	}
	writeJSON(w, http.StatusOK, out)
}

func (lr *ledgerRoutes) getCurrency(w http.ResponseWriter, r *http.Request) {
	id, ok := pathAddress(w, r, "currency")
	if !ok {
		return
	}
	c, err := lr.node.Currencies().Currency(r.Context(), id)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, currencyView(c))
}

func (lr *ledgerRoutes) addCurrency(w http.ResponseWriter, r *http.Request) {
	who, ok := caller(w, r)
	if !ok {
		return
	}
	var body addCurrencyBody
	if err := decodeRequest(r, &body); err != nil {
		writeBadRequest(w, err)
		return
	}
	id, err := parseCurrency(body.Address)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	kind, err := currency.ParseKind(body.Kind)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	limit, err := parseAmount(body.Limit)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := lr.node.Currencies().AddCurrency(r.Context(), who, id, kind, limit); err != nil {
		writeLedgerError(w, err)
		return
	}
	c, err := lr.node.Currencies().Currency(r.Context(), id)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, currencyView(c))
}

func (lr *ledgerRoutes) removeCurrency(w http.ResponseWriter, r *http.Request) {
	who, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := pathAddress(w, r, "currency")
	if !ok {
		return
	}
	if err := lr.node.Currencies().RemoveCurrency(r.Context(), who, id); err != nil {
		writeLedgerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (lr *ledgerRoutes) setLimit(w http.ResponseWriter, r *http.Request) {
	who, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := pathAddress(w, r, "currency")
	if !ok {
		return
	}
	var body limitBody
	if err := decodeRequest(r, &body); err != nil {
		writeBadRequest(w, err)
		return
	}
	limit, err := parseAmount(body.Limit)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := lr.node.Currencies().SetLimit(r.Context(), who, id, limit); err != nil {
		writeLedgerError(w, err)
		return
	}
	c, err := lr.node.Currencies().Currency(r.Context(), id)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, currencyView(c))
}

func (lr *ledgerRoutes) listProjects(w http.ResponseWriter, r *http.Request) {
	list := lr.node.Projects().Projects()
	out := make([]projectJSON, len(list))
	for i, p := range list {
		out[i] = projectJSON{ID: formatAddress(p.ID), Admin: formatAddress(p.Admin)}
		if p.ClientCollector != (common.Address{}) {
			out[i].ClientCollector = formatAddress(p.ClientCollector)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (lr *ledgerRoutes) getBudget(w http.ResponseWriter, r *http.Request) {
	project, ok := pathAddress(w, r, "project")
	if !ok {
		return
	}
	id, ok := pathAddress(w, r, "currency")
	if !ok {
		return
	}
	h, err := lr.node.Vault().Budget(r.Context(), project, id)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, holdingsView(h))
}

func (lr *ledgerRoutes) getFeeBudget(w http.ResponseWriter, r *http.Request) {
	project, ok := pathAddress(w, r, "project")
	if !ok {
		return
	}
	id, ok := pathAddress(w, r, "currency")
	if !ok {
		return
	}
	h, err := lr.node.Vault().FeeBudget(r.Context(), project, id)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, holdingsView(h))
}

func (lr *ledgerRoutes) getClaimable(w http.ResponseWriter, r *http.Request) {
	project, ok := pathAddress(w, r, "project")
	if !ok {
		return
	}
	recipient, ok := pathAddress(w, r, "recipient")
	if !ok {
		return
	}
	id, ok := pathAddress(w, r, "currency")
	if !ok {
		return
	}
	h, err := lr.node.Vault().Claimable(r.Context(), project, recipient, id)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, holdingsView(h))
}

func (lr *ledgerRoutes) getTotals(w http.ResponseWriter, r *http.Request) {
	project, ok := pathAddress(w, r, "project")
	if !ok {
		return
	}
	id, ok := pathAddress(w, r, "currency")
	if !ok {
		return
	}
	totals, err := lr.node.Vault().Totals(r.Context(), project, id)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, totalsView(totals))
}

func (lr *ledgerRoutes) deposit(w http.ResponseWriter, r *http.Request) {
	who, ok := caller(w, r)
	if !ok {
		return
	}
	project, ok := pathAddress(w, r, "project")
	if !ok {
		return
	}
	var body vaultMoveBody
	if err := decodeRequest(r, &body); err != nil {
		writeBadRequest(w, err)
		return
	}
	qty, err := body.quantity()
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	engine := lr.node.Vault()
	ctx := r.Context()
	switch {
	case body.FeeBudget:
		err = engine.DepositFeeBudget(ctx, who, project, qty.Amount)
	case strings.EqualFold(strings.TrimSpace(body.Currency), "native"):
		err = engine.DepositNative(ctx, who, project, qty.Amount)
	default:
		var id common.Address
		if id, err = parseAddress(body.Currency); err != nil {
			writeBadRequest(w, err)
			return
		}
		if len(qty.TokenIDs) > 0 {
			err = engine.DepositNFT(ctx, who, project, id, qty.TokenIDs, qty.Amounts)
		} else {
			err = engine.DepositFungible(ctx, who, project, id, qty.Amount)
		}
	}
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (lr *ledgerRoutes) applyRemoval(w http.ResponseWriter, r *http.Request) {
	who, ok := caller(w, r)
	if !ok {
		return
	}
	project, ok := pathAddress(w, r, "project")
	if !ok {
		return
	}
	if err := lr.node.Vault().ApplyToRemoveBudget(r.Context(), who, project); err != nil {
		writeLedgerError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (lr *ledgerRoutes) remove(w http.ResponseWriter, r *http.Request) {
	who, ok := caller(w, r)
	if !ok {
		return
	}
	project, ok := pathAddress(w, r, "project")
	if !ok {
		return
	}
	var body vaultMoveBody
	if err := decodeRequest(r, &body); err != nil {
		writeBadRequest(w, err)
		return
	}
	id, err := parseCurrency(body.Currency)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	qty, err := body.quantity()
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if body.FeeBudget {
		err = lr.node.Vault().RemoveFeeBudget(r.Context(), who, project, id, qty.Amount)
	} else {
		err = lr.node.Vault().RemoveBudget(r.Context(), who, project, id, qty)
	}
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (lr *ledgerRoutes) attribute(w http.ResponseWriter, r *http.Request) {
	who, ok := caller(w, r)
	if !ok {
		return
	}
	var body attributeBody
	if err := decodeRequest(r, &body); err != nil {
		writeBadRequest(w, err)
		return
	}
	requests, err := body.requests()
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	receipt, err := lr.node.Attribution().Attribute(r.Context(), who, requests)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attributeResponse{BatchID: receipt.BatchID, Projects: receipt.Projects, Entries: receipt.Entries})
}

func (lr *ledgerRoutes) claim(w http.ResponseWriter, r *http.Request) {
	who, ok := caller(w, r)
	if !ok {
		return
	}
	var body claimBody
	if err := decodeRequest(r, &body); err != nil {
		writeBadRequest(w, err)
		return
	}
	checks, err := body.checks()
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	receipt, err := lr.node.Claims().Claim(r.Context(), who, checks)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	out := claimResponse{BatchID: receipt.BatchID, Payouts: make([]payoutJSON, len(receipt.Payouts))}
	for i, p := range receipt.Payouts {
		out.Payouts[i] = payoutJSON{
			Project:  formatAddress(p.Project),
			Currency: formatAddress(p.Currency),
			Asset:    assetView(p.Asset),
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (lr *ledgerRoutes) listPauses(w http.ResponseWriter, r *http.Request) {
	statuses, err := lr.node.Pauses().Statuses(r.Context())
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	out := make([]pauseJSON, len(statuses))
	for i, s := range statuses {
		out[i] = pauseJSON{Module: s.Module, Paused: s.Paused, Since: s.Since}
		if s.By != (common.Address{}) {
			out[i].By = formatAddress(s.By)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (lr *ledgerRoutes) setPause(w http.ResponseWriter, r *http.Request) {
	who, ok := caller(w, r)
	if !ok {
		return
	}
	var body pauseBody
	if err := decodeRequest(r, &body); err != nil {
		writeBadRequest(w, err)
		return
	}
	module := strings.ToLower(chi.URLParam(r, "module"))
	var err error
	if body.Paused {
		err = lr.node.Pauses().Pause(r.Context(), who, module)
	} else {
		err = lr.node.Pauses().Unpause(r.Context(), who, module)
	}
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pauseJSON{Module: module, Paused: lr.node.Pauses().IsPaused(r.Context(), module)})
}

func (lr *ledgerRoutes) listEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, lr.events.Recent())
}
