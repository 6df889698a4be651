package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"atelier/internal/domain"
	"atelier/internal/engine"
	"atelier/internal/repo"
)

func registerClients(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-client",
		Method:        http.MethodPost,
		Path:          "/clients",
		Summary:       "Create client",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateClientRequest
	}) (*struct {
		Body domain.Client
	}, error) {
		c, err := e.CreateClient(ctx, domain.Client{
			Name:    input.Body.Name,
			Email:   input.Body.Email,
			Phone:   input.Body.Phone,
			Address: input.Body.Address,
			Notes:   input.Body.Notes,
		}, actorID(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body domain.Client }{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-clients",
		Method:      http.MethodGet,
		Path:        "/clients",
		Summary:     "List clients",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Client
	}, error) {
		items, err := e.Repo.ListClients(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body []domain.Client }{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-client",
		Method:      http.MethodGet,
		Path:        "/clients/{client_id}",
		Summary:     "Get client",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ClientID string `path:"client_id"`
	}) (*struct {
		Body domain.Client
	}, error) {
		c, err := e.Repo.GetClient(ctx, input.ClientID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body domain.Client }{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-client",
		Method:      http.MethodPatch,
		Path:        "/clients/{client_id}",
		Summary:     "Update client",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ClientID string `path:"client_id"`
		Body     CreateClientRequest
	}) (*struct {
		Body domain.Client
	}, error) {
		c, err := e.Repo.GetClient(ctx, input.ClientID)
		if err != nil {
			return nil, handleError(err)
		}
		if input.Body.Name != "" {
			c.Name = input.Body.Name
		}
		if input.Body.Email != "" {
			c.Email = input.Body.Email
		}
		if input.Body.Phone != "" {
			c.Phone = input.Body.Phone
		}
		if input.Body.Address != "" {
			c.Address = input.Body.Address
		}
		if input.Body.Notes != "" {
			c.Notes = input.Body.Notes
		}
		if err := e.Repo.UpdateClient(ctx, c); err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body domain.Client }{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-client",
		Method:      http.MethodDelete,
		Path:        "/clients/{client_id}",
		Summary:     "Delete client",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ClientID string `path:"client_id"`
	}) (*struct{}, error) {
		if err := e.Repo.DeleteClient(ctx, input.ClientID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerProjects(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Create project",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body CreateProjectRequest
	}) (*struct {
		Body domain.Project
	}, error) {
		p, err := e.CreateProject(ctx, engine.ProjectCreateOptions{
			ClientID:    input.Body.ClientID,
			Name:        input.Body.Name,
			Address:     input.Body.Address,
			StartDate:   input.Body.StartDate,
			InstallDate: input.Body.InstallDate,
			ActorID:     actorID(ctx),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body domain.Project }{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List projects",
	}, func(ctx context.Context, input *struct {
		ClientID string `query:"client_id"`
		Status   string `query:"status" enum:",active,on_hold,archived"`
	}) (*struct {
		Body []domain.Project
	}, error) {
		items, err := e.Repo.ListProjects(ctx, repo.ProjectFilters{ClientID: input.ClientID, Status: input.Status})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body []domain.Project }{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}",
		Summary:     "Get project",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body domain.Project
	}, error) {
		p, err := e.Repo.GetProject(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body domain.Project }{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-project",
		Method:      http.MethodPatch,
		Path:        "/projects/{project_id}",
		Summary:     "Update project",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		Body      UpdateProjectRequest
	}) (*struct {
		Body domain.Project
	}, error) {
		if input.Body.Status != "" {
			if _, err := e.SetProjectStatus(ctx, input.ProjectID, input.Body.Status, actorID(ctx)); err != nil {
				return nil, handleError(err)
			}
		}
		if err := e.Repo.UpdateProject(ctx, input.ProjectID, "", input.Body.Address, input.Body.StartDate, input.Body.InstallDate); err != nil {
			return nil, handleError(err)
		}
		p, err := e.Repo.GetProject(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body domain.Project }{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-project",
		Method:      http.MethodDelete,
		Path:        "/projects/{project_id}",
		Summary:     "Delete project",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct{}, error) {
		if err := e.Repo.DeleteProject(ctx, input.ProjectID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerMembers(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-member",
		Method:        http.MethodPost,
		Path:          "/members",
		Summary:       "Create team member",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateMemberRequest
	}) (*struct {
		Body domain.TeamMember
	}, error) {
		m, err := e.CreateMember(ctx, domain.TeamMember{
			Name:  input.Body.Name,
			Email: input.Body.Email,
			Role:  input.Body.Role,
		}, actorID(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body domain.TeamMember }{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-members",
		Method:      http.MethodGet,
		Path:        "/members",
		Summary:     "List team members",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.TeamMember
	}, error) {
		items, err := e.Repo.ListMembers(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body []domain.TeamMember }{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-member",
		Method:      http.MethodGet,
		Path:        "/members/{member_id}",
		Summary:     "Get team member",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		MemberID string `path:"member_id"`
	}) (*struct {
		Body domain.TeamMember
	}, error) {
		m, err := e.Repo.GetMember(ctx, input.MemberID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body domain.TeamMember }{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-member",
		Method:      http.MethodDelete,
		Path:        "/members/{member_id}",
		Summary:     "Delete team member",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		MemberID string `path:"member_id"`
	}) (*struct{}, error) {
		if err := e.Repo.DeleteMember(ctx, input.MemberID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerProducts(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-product",
		Method:        http.MethodPost,
		Path:          "/rooms/{room_id}/products",
		Summary:       "Add an FFE product to a room",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		RoomID string `path:"room_id"`
		Body   CreateProductRequest
	}) (*struct {
		Body domain.Product
	}, error) {
		p, err := e.CreateProduct(ctx, domain.Product{
			RoomID:         input.RoomID,
			Name:           input.Body.Name,
			Vendor:         input.Body.Vendor,
			SKU:            input.Body.SKU,
			Category:       input.Body.Category,
			UnitPriceCents: input.Body.UnitPriceCents,
			Quantity:       input.Body.Quantity,
			LeadTimeWeeks:  input.Body.LeadTimeWeeks,
			Notes:          input.Body.Notes,
		}, actorID(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body domain.Product }{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-products",
		Method:      http.MethodGet,
		Path:        "/rooms/{room_id}/products",
		Summary:     "List a room's FFE products",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		RoomID string `path:"room_id"`
	}) (*struct {
		Body []domain.Product
	}, error) {
		if _, err := e.Repo.GetRoom(ctx, input.RoomID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListProducts(ctx, input.RoomID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body []domain.Product }{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-product-status",
		Method:      http.MethodPost,
		Path:        "/products/{product_id}/status",
		Summary:     "Advance a product's status",
		Errors:      []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ProductID string `path:"product_id"`
		Body      SetStatusRequest
	}) (*struct {
		Body domain.Product
	}, error) {
		p, err := e.SetProductStatus(ctx, input.ProductID, input.Body.Status, actorID(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body domain.Product }{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-product",
		Method:      http.MethodDelete,
		Path:        "/products/{product_id}",
		Summary:     "Delete product",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProductID string `path:"product_id"`
	}) (*struct{}, error) {
		if err := e.Repo.DeleteProduct(ctx, input.ProductID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}
