package http

import (
	"net/http"

	"carteira/internal/core"
	"carteira/internal/services"
)

func (s *Server) handleCreateWallet(w http.ResponseWriter, r *http.Request, owner string) {
	var in core.WalletInput
	if !decodeJSON(w, r, &in, false) {
		return
	}
	wallet, err := s.svc.Wallets.Create(r.Context(), owner, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, wallet)
}

func (s *Server) handleListWallets(w http.ResponseWriter, r *http.Request, owner string) {
	wallets, err := s.svc.Wallets.List(r.Context(), owner, queryBool(r, "active", true))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if wallets == nil {
		wallets = []core.Wallet{}
	}
	writeJSON(w, http.StatusOK, wallets)
}

func (s *Server) handleGetWallet(w http.ResponseWriter, r *http.Request, owner string) {
	wallet, err := s.svc.Wallets.Get(r.Context(), r.PathValue("id"), owner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

func (s *Server) handleUpdateWallet(w http.ResponseWriter, r *http.Request, owner string) {
	var in core.WalletInput
	if !decodeJSON(w, r, &in, false) {
		return
	}
	wallet, err := s.svc.Wallets.Update(r.Context(), r.PathValue("id"), owner, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

func (s *Server) handleDeactivateWallet(w http.ResponseWriter, r *http.Request, owner string) {
	if err := s.svc.Wallets.Deactivate(r.Context(), r.PathValue("id"), owner); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRecalculateWallet(w http.ResponseWriter, r *http.Request, owner string) {
	id := r.PathValue("id")
	balance, err := s.svc.Wallets.Recompute(r.Context(), id, owner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"walletId": id, "balance": balance})
}

func (s *Server) handleWalletDrift(w http.ResponseWriter, r *http.Request, owner string) {
	drift, err := s.svc.Wallets.DetectDrift(r.Context(), r.PathValue("id"), owner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, drift)
}

func (s *Server) handleCreateTransfer(w http.ResponseWriter, r *http.Request, owner string) {
	var in services.TransferInput
	if !decodeJSON(w, r, &in, false) {
		return
	}
	transfer, err := s.svc.Wallets.Transfer(r.Context(), owner, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, transfer)
}

func (s *Server) handleListTransfers(w http.ResponseWriter, r *http.Request, owner string) {
	transfers, err := s.svc.Wallets.ListTransfers(r.Context(), owner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if transfers == nil {
		transfers = []services.Transfer{}
	}
	writeJSON(w, http.StatusOK, transfers)
}
